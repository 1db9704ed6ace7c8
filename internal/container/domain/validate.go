package domain

import (
	validation "github.com/jellydator/validation"

	cryptoDomain "github.com/containervault/containervault/internal/cryptocore/domain"
	customValidation "github.com/containervault/containervault/internal/validation"
)

// Validate checks that conf names at least one stratum and that every
// algorithm tag and escrow descriptor is well-formed enough to attempt
// resolution, before the engine spends any key material on it.
func (conf EncryptionConf) Validate() error {
	if err := validation.Validate(conf.DataEncryptionStrata, validation.Required); err != nil {
		return customValidation.WrapValidationError(err)
	}
	for _, stratum := range conf.DataEncryptionStrata {
		if err := stratum.Validate(); err != nil {
			return customValidation.WrapValidationError(err)
		}
	}
	return nil
}

// Validate checks a single data encryption stratum's configuration.
func (sc DataEncryptionStratumConf) Validate() error {
	if err := validation.ValidateStruct(&sc,
		validation.Field(&sc.DataEncryptionAlgo, validation.Required, validation.By(validateSymmetricAlgo)),
	); err != nil {
		return err
	}
	for _, kc := range sc.KeyEncryptionStrata {
		if err := kc.Validate(); err != nil {
			return err
		}
	}
	for _, sigc := range sc.DataSignatures {
		if err := sigc.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks a single key-wrapping sub-stratum's configuration.
func (kc KeyEncryptionStratumConf) Validate() error {
	if err := validateAsymmetricAlgo(kc.KeyEncryptionAlgo); err != nil {
		return err
	}
	return validateEscrowDescriptor(kc.KeyEscrow)
}

// Validate checks a single signature configuration.
func (sigc SignatureConf) Validate() error {
	if err := validateSignatureAlgo(sigc.SignatureAlgo); err != nil {
		return err
	}
	return validateEscrowDescriptor(sigc.SignatureEscrow)
}

func validateSymmetricAlgo(value any) error {
	algo, _ := value.(cryptoDomain.SymmetricAlgorithm)
	if _, ok := cryptoDomain.KeySizeForSymmetric(algo); !ok {
		return validation.NewError("validation_unknown_symmetric_algo", "unsupported data encryption algorithm")
	}
	return nil
}

func validateAsymmetricAlgo(algo cryptoDomain.AsymmetricAlgorithm) error {
	if algo != cryptoDomain.RSAOAEP {
		return validation.NewError("validation_unknown_asymmetric_algo", "unsupported key encryption algorithm")
	}
	return nil
}

func validateSignatureAlgo(algo cryptoDomain.SignatureAlgorithm) error {
	switch algo {
	case cryptoDomain.DSADSS, cryptoDomain.RSAPSS, cryptoDomain.ECCDSS:
		return nil
	default:
		return validation.NewError("validation_unknown_signature_algo", "unsupported signature algorithm")
	}
}

func validateEscrowDescriptor(descriptor EscrowDescriptor) error {
	switch v := descriptor.(type) {
	case string:
		if customValidation.NotBlank.Validate(v) != nil {
			return validation.NewError("validation_blank_escrow", "escrow descriptor must not be blank")
		}
		return nil
	case map[string]any:
		url, ok := v["url"].(string)
		if !ok || customValidation.NotBlank.Validate(url) != nil {
			return validation.NewError("validation_missing_url", "remote escrow descriptor requires a non-blank url")
		}
		return nil
	default:
		return validation.NewError("validation_unknown_descriptor", "escrow descriptor must be a string or {url: ...} map")
	}
}

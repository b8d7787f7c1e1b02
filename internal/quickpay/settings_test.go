package quickpay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettings_Validate(t *testing.T) {
	assert.NoError(t, testSettings().Validate())

	err := Settings{APIKey: "k"}.Validate()
	assert.True(t, errors.Is(err, ErrConfigurationMissing))
	assert.Contains(t, err.Error(), "private_key")
}

func TestSettings_WithDefaults(t *testing.T) {
	def := testSettings()

	t.Run("FillsEverythingFromDefaults", func(t *testing.T) {
		got := Settings{}.WithDefaults(def)
		assert.Equal(t, def.APIKey, got.APIKey)
		assert.Equal(t, def.PrivateKey, got.PrivateKey)
		assert.Equal(t, def.Currency, got.Currency)
		assert.Equal(t, def.PaymentMethods, got.PaymentMethods)
	})

	t.Run("KeepsOwnCredentials", func(t *testing.T) {
		own := Settings{APIKey: "own-key", PrivateKey: "own-private", Currency: "EUR"}
		got := own.WithDefaults(def)
		assert.Equal(t, "own-key", got.APIKey)
		assert.Equal(t, "own-private", got.PrivateKey)
		assert.Equal(t, "", got.MerchantID)
		assert.Equal(t, "EUR", got.Currency)
		assert.Equal(t, def.Language, got.Language)
	})
}

func TestSettings_Public(t *testing.T) {
	s := testSettings()
	s.PaymentMethods = []string{"creditcard"}

	pub := s.Public()
	assert.Empty(t, pub.APIKey)
	assert.Empty(t, pub.PrivateKey)
	assert.Equal(t, s.MerchantID, pub.MerchantID)
	assert.Equal(t, s.Currency, pub.Currency)

	pub.PaymentMethods[0] = "mobilepay"
	assert.Equal(t, "creditcard", s.PaymentMethods[0])
	assert.NotEmpty(t, s.APIKey)
}

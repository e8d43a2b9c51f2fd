package settings

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"checkout/internal/engine/mocks"
	"checkout/internal/pidl/models"
	dErrors "checkout/pkg/domain-errors"
)

const catalog = `
settings:
  - partner: Cart
    template: compact
    redirection_pattern: fullPage
    features:
      identityBroadcast:
        enabled: true
        toggles: {broadcastTarget: billingAddress}
      preExistingValue:
        enabled: false
  - partner: cart
    country: US
    redirection_pattern: qrCode
`

type StaticSuite struct {
	suite.Suite
	ctx      context.Context
	provider *StaticProvider
}

func TestStaticSuite(t *testing.T) {
	suite.Run(t, new(StaticSuite))
}

func (s *StaticSuite) SetupTest() {
	s.ctx = context.Background()
	provider, err := LoadStatic(fstest.MapFS{"partners/cart.yaml": &fstest.MapFile{Data: []byte(catalog)}})
	s.Require().NoError(err)
	s.provider = provider
}

func (s *StaticSuite) TestGetSetting() {
	s.Run("country-scoped setting beats the partner-wide one", func() {
		setting, err := s.provider.GetSetting(s.ctx, "cart", "us")
		s.Require().NoError(err)
		s.Equal("qrCode", setting.RedirectionPattern)
		s.Equal("us", setting.Country)
		s.Equal("static:partners/cart.yaml", setting.Source)
	})

	s.Run("other countries fall back to the partner-wide setting", func() {
		setting, err := s.provider.GetSetting(s.ctx, "CART", "de")
		s.Require().NoError(err)
		s.Equal("compact", setting.Template)
		s.True(setting.Features["identityBroadcast"].Enabled)
		s.Equal("billingAddress", setting.Features["identityBroadcast"].Toggles["broadcastTarget"])
		s.False(setting.Features["preExistingValue"].Enabled)
	})

	s.Run("unknown partner runs on defaults", func() {
		setting, err := s.provider.GetSetting(s.ctx, "storefront", "us")
		s.Require().NoError(err)
		s.Nil(setting)
	})

	s.Run("callers get independent copies", func() {
		first, _ := s.provider.GetSetting(s.ctx, "cart", "de")
		first.Features["identityBroadcast"] = models.FeatureSetting{}
		second, _ := s.provider.GetSetting(s.ctx, "cart", "de")
		s.True(second.Features["identityBroadcast"].Enabled)
	})
}

func TestLoadStaticRejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"unknown field":   "settings:\n  - partner: cart\n    colour: blue\n",
		"missing partner": "settings:\n  - template: compact\n",
		"unknown pattern": "settings:\n  - partner: cart\n    redirection_pattern: popup\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadStatic(fstest.MapFS{"bad.yaml": &fstest.MapFile{Data: []byte(body)}})
			require.Error(t, err)
			assert.True(t, dErrors.Is(err, dErrors.CodeTemplateMalformed))
		})
	}
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	t.Run("specific beats partner-wide regardless of order", func(t *testing.T) {
		scoped := NewStatic(models.PartnerExperienceSetting{Partner: "cart", Country: "us", RedirectionPattern: "qrCode"})
		wide := NewStatic(models.PartnerExperienceSetting{Partner: "cart", RedirectionPattern: "fullPage", Template: "compact"})

		setting, err := NewChain(scoped, wide).GetSetting(ctx, "cart", "us")
		require.NoError(t, err)
		assert.Equal(t, "qrCode", setting.RedirectionPattern)
		assert.Equal(t, "compact", setting.Template)
	})

	t.Run("equal specificity resolves to the later source", func(t *testing.T) {
		first := NewStatic(models.PartnerExperienceSetting{Partner: "cart", RedirectionPattern: "fullPage"})
		second := NewStatic(models.PartnerExperienceSetting{Partner: "cart", RedirectionPattern: "inline"})

		setting, err := NewChain(first, second).GetSetting(ctx, "cart", "us")
		require.NoError(t, err)
		assert.Equal(t, "inline", setting.RedirectionPattern)
	})

	t.Run("features merge by name", func(t *testing.T) {
		first := NewStatic(models.PartnerExperienceSetting{Partner: "cart", Features: map[string]models.FeatureSetting{
			"identityBroadcast": {Enabled: true},
			"preExistingValue":  {Enabled: true},
		}})
		second := NewStatic(models.PartnerExperienceSetting{Partner: "cart", Features: map[string]models.FeatureSetting{
			"preExistingValue": {Enabled: false},
		}})

		setting, err := NewChain(first, second).GetSetting(ctx, "cart", "us")
		require.NoError(t, err)
		assert.True(t, setting.Features["identityBroadcast"].Enabled)
		assert.False(t, setting.Features["preExistingValue"].Enabled)
	})

	t.Run("no provider has a setting", func(t *testing.T) {
		setting, err := NewChain(NewStatic(), nil).GetSetting(ctx, "cart", "us")
		require.NoError(t, err)
		assert.Nil(t, setting)
	})

	t.Run("provider errors abort the lookup", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		failing := mocks.NewMockSettingsProvider(ctrl)
		failing.EXPECT().GetSetting(gomock.Any(), "cart", "us").Return(nil, errors.New("db down"))

		_, err := NewChain(NewStatic(), failing).GetSetting(ctx, "cart", "us")
		require.Error(t, err)
	})
}

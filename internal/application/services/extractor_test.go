package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/referralintake/internal/application/services"
	"github.com/zatekoja/referralintake/internal/domain/entities"
	"github.com/zatekoja/referralintake/internal/domain/providers"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
)

func TestExtractor_Run_AppliesTimeout(t *testing.T) {
	provider := new(MockExtractionProvider)
	extractor := services.NewExtractor(provider, 50*time.Millisecond, nil)

	provider.On("Run", mock.Anything, task("slow"), "text", mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			deadline, ok := ctx.Deadline()
			assert.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
		}).
		Return(nil)

	var out entities.ProviderInfo
	err := extractor.Run(context.Background(), providers.AgentSpec{Name: "slow"}, "text", &out)
	require.NoError(t, err)
	provider.AssertExpectations(t)
}

func TestExtractor_Run_WrapsProviderErrors(t *testing.T) {
	provider := new(MockExtractionProvider)
	extractor := services.NewExtractor(provider, time.Second, nil)

	provider.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("connection refused"))

	var out entities.ProviderInfo
	err := extractor.Run(context.Background(), providers.AgentSpec{Name: services.TaskProviderName}, "text", &out)

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExtraction))
	assert.Contains(t, err.Error(), "provider_name extraction failed")
}

func TestExtractor_Run_ValidatesOutput(t *testing.T) {
	provider := new(MockExtractionProvider)
	extractor := services.NewExtractor(provider, time.Second, nil)

	provider.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(fill(entities.RuleEvaluation{Status: "unsure"})).
		Return(nil)

	var out entities.RuleEvaluation
	err := extractor.Run(context.Background(), providers.AgentSpec{Name: services.TaskRuleEvaluation}, "text", &out)

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExtraction))
}

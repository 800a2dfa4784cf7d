package services_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/referralintake/internal/application/services"
	"github.com/zatekoja/referralintake/internal/domain/entities"
	"github.com/zatekoja/referralintake/internal/domain/providers"
)

func ruleInput(title string) interface{} {
	return mock.MatchedBy(func(input string) bool {
		return strings.Contains(input, "Name: "+title+"\n")
	})
}

func TestRuleEvaluator_FanOutIsolation(t *testing.T) {
	provider := new(MockExtractionProvider)
	cases := new(MockCaseRepository)
	evaluator := services.NewRuleEvaluator(services.NewExtractor(provider, time.Second, nil), cases, nil, 0, "", nil)

	checks := []*entities.RuleCheck{
		{RuleTitle: "Rule 1", RuleDescription: "first"},
		{RuleTitle: "Rule 2", RuleDescription: "second"},
		{RuleTitle: "Rule 3", RuleDescription: "third"},
	}

	provider.On("Run", mock.Anything, task(services.TaskRuleEvaluation), ruleInput("Rule 1"), mock.Anything).
		Run(fill(entities.RuleEvaluation{Status: entities.RuleStatusValid, Reasoning: "ok"})).Return(nil)
	provider.On("Run", mock.Anything, task(services.TaskRuleEvaluation), ruleInput("Rule 2"), mock.Anything).
		Return(errors.New("model overloaded"))
	provider.On("Run", mock.Anything, task(services.TaskRuleEvaluation), ruleInput("Rule 3"), mock.Anything).
		Run(fill(entities.RuleEvaluation{Status: entities.RuleStatusDeny, Reasoning: "contraindicated"})).Return(nil)

	cases.On("UpdateRuleCheck", mock.Anything, "case-1", "Rule 1", mock.MatchedBy(func(e *entities.RuleEvaluation) bool {
		return e.Status == entities.RuleStatusValid
	})).Return(nil)
	cases.On("UpdateRuleCheck", mock.Anything, "case-1", "Rule 3", mock.MatchedBy(func(e *entities.RuleEvaluation) bool {
		return e.Status == entities.RuleStatusDeny
	})).Return(nil)

	outcomes := evaluator.EvaluateAll(context.Background(), "case-1", "document", checks)

	assert.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].Updated)
	assert.Equal(t, entities.RuleStatusValid, outcomes[0].Status)
	assert.False(t, outcomes[1].Updated)
	assert.Contains(t, outcomes[1].Error, "model overloaded")
	assert.True(t, outcomes[2].Updated)
	assert.Equal(t, entities.RuleStatusDeny, outcomes[2].Status)
	cases.AssertExpectations(t)
	cases.AssertNotCalled(t, "UpdateRuleCheck", mock.Anything, "case-1", "Rule 2", mock.Anything)
}

func TestRuleEvaluator_SkipsIncompleteChecks(t *testing.T) {
	provider := new(MockExtractionProvider)
	cases := new(MockCaseRepository)
	evaluator := services.NewRuleEvaluator(services.NewExtractor(provider, time.Second, nil), cases, nil, 0, "", nil)

	provider.On("Run", mock.Anything, task(services.TaskRuleEvaluation), ruleInput("A"), mock.Anything).
		Run(fill(entities.RuleEvaluation{Status: entities.RuleStatusNeedsMoreInformation, RequiredAdditionalInfo: []string{"ECG"}})).
		Return(nil)
	cases.On("UpdateRuleCheck", mock.Anything, "case-1", "A", mock.Anything).Return(nil)

	outcomes := evaluator.EvaluateAll(context.Background(), "case-1", "document", []*entities.RuleCheck{
		{RuleTitle: "A", RuleDescription: "desc A"},
		{RuleTitle: "", RuleDescription: ""},
	})

	assert.True(t, outcomes[0].Updated)
	assert.True(t, outcomes[1].Skipped)
	provider.AssertNumberOfCalls(t, "Run", 1)
	cases.AssertNumberOfCalls(t, "UpdateRuleCheck", 1)
}

func TestRuleEvaluator_WriteFailureIsContained(t *testing.T) {
	provider := new(MockExtractionProvider)
	cases := new(MockCaseRepository)
	evaluator := services.NewRuleEvaluator(services.NewExtractor(provider, time.Second, nil), cases, nil, 0, "", nil)

	provider.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(fill(entities.RuleEvaluation{Status: entities.RuleStatusValid})).Return(nil)
	cases.On("UpdateRuleCheck", mock.Anything, "case-1", "A", mock.Anything).Return(errors.New("write failed"))
	cases.On("UpdateRuleCheck", mock.Anything, "case-1", "B", mock.Anything).Return(nil)

	outcomes := evaluator.EvaluateAll(context.Background(), "case-1", "document", []*entities.RuleCheck{
		{RuleTitle: "A", RuleDescription: "desc A"},
		{RuleTitle: "B", RuleDescription: "desc B"},
	})

	assert.False(t, outcomes[0].Updated)
	assert.Equal(t, entities.RuleStatusValid, outcomes[0].Status)
	assert.NotEmpty(t, outcomes[0].Error)
	assert.True(t, outcomes[1].Updated)
}

func TestRuleEvaluator_RespectsConcurrencyLimit(t *testing.T) {
	provider := new(MockExtractionProvider)
	cases := new(MockCaseRepository)
	evaluator := services.NewRuleEvaluator(services.NewExtractor(provider, time.Second, nil), cases, nil, 2, "", nil)

	var inFlight, peak int32
	provider.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			fill(entities.RuleEvaluation{Status: entities.RuleStatusValid})(args)
		}).Return(nil)
	cases.On("UpdateRuleCheck", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	checks := make([]*entities.RuleCheck, 6)
	for i := range checks {
		checks[i] = &entities.RuleCheck{RuleTitle: string(rune('A' + i)), RuleDescription: "desc"}
	}

	outcomes := evaluator.EvaluateAll(context.Background(), "case-1", "document", checks)

	assert.Len(t, outcomes, 6)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	cases.AssertNumberOfCalls(t, "UpdateRuleCheck", 6)
}

func TestRuleEvaluator_PublishesUpdates(t *testing.T) {
	provider := new(MockExtractionProvider)
	cases := new(MockCaseRepository)
	bus := new(MockEventBus)
	evaluator := services.NewRuleEvaluator(services.NewExtractor(provider, time.Second, nil), cases, bus, 0, "", nil)

	provider.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(fill(entities.RuleEvaluation{Status: entities.RuleStatusValid})).Return(nil)
	cases.On("UpdateRuleCheck", mock.Anything, "case-1", "A", mock.Anything).Return(nil)
	bus.On("Publish", mock.Anything, providers.GetCaseChannel("case-1"), mock.MatchedBy(func(e *entities.CaseEvent) bool {
		return e.EventType == entities.CaseEventTypeRuleCheckUpdated && e.ChangedFields["rule_title"] == "A"
	})).Return(errors.New("redis down"))

	outcomes := evaluator.EvaluateAll(context.Background(), "case-1", "document", []*entities.RuleCheck{
		{RuleTitle: "A", RuleDescription: "desc A"},
	})

	assert.True(t, outcomes[0].Updated, "publish failures do not affect the outcome")
	bus.AssertExpectations(t)
}

package service

import (
	"context"
	"course_gating_backend/internal/model"
	"course_gating_backend/internal/signals"
	"course_gating_backend/pkg/monitoring"
	"errors"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

var errStoreUnavailable = errors.New("store unavailable")

type failingEvaluator struct{}

func (failingEvaluator) EvaluatePrerequisite(context.Context, *model.Course, *model.SubsectionGrade, uint) error {
	return errStoreUnavailable
}

func TestEvaluationFailureIsCounted(t *testing.T) {
	env := newGatingEnv(t)
	ConnectGatingHandlers(env.signals, failingEvaluator{})
	failures := monitoring.GatingEvaluations.WithLabelValues("error")
	before := promtestutil.ToFloat64(failures)

	// the grade is still written
	grade := env.answer(t, env.prob1, 1, 1)
	require.NotNil(t, grade)
	assert.Equal(t, before+1, promtestutil.ToFloat64(failures))

	logged := env.logs.FilterLevelExact(zapcore.ErrorLevel).FilterMessage("signal receiver failed")
	assert.Equal(t, 1, logged.Len())
}

func TestEvaluationFailureReachesSender(t *testing.T) {
	env := newGatingEnv(t)
	ConnectGatingHandlers(env.signals, failingEvaluator{})

	results := env.signals.Send(env.ctx, signals.SubsectionScoreChanged, signals.SubsectionScorePayload{
		Course: env.course,
		Grade:  &model.SubsectionGrade{UsageKey: env.seq1.Location},
		UserID: env.user.ID,
	})
	require.Len(t, results, 1)
	assert.Equal(t, EvaluatePrerequisiteReceiver, results[0].Receiver)
	assert.ErrorIs(t, results[0].Err, errStoreUnavailable)
}

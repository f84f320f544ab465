package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveProvider(t *testing.T) {
	before := testutil.ToFloat64(ProviderRequests.WithLabelValues("sina", "quote", OutcomeError))
	ObserveProvider("sina", "quote", time.Now(), errors.New("boom"))
	after := testutil.ToFloat64(ProviderRequests.WithLabelValues("sina", "quote", OutcomeError))
	assert.Equal(t, before+1, after)
}

func TestObserveQuery(t *testing.T) {
	before := testutil.ToFloat64(QueryTotal.WithLabelValues("quote", OutcomeSuccess))
	ObserveQuery("quote", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(QueryTotal.WithLabelValues("quote", OutcomeSuccess)))
}

func TestRegisterTwice(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

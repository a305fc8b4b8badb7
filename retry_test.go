package seclai

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldRetry(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 599} {
		assert.True(t, shouldRetry(code), strconv.Itoa(code))
	}
	for _, code := range []int{200, 400, 401, 404, 422, 600} {
		assert.False(t, shouldRetry(code), strconv.Itoa(code))
	}
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 5*time.Second, parseRetryAfter("5"))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("-3"))
	assert.Zero(t, parseRetryAfter("soon"))

	future := time.Now().Add(2 * time.Hour).UTC().Format(http.TimeFormat)
	assert.Equal(t, time.Hour, parseRetryAfter(future))

	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	assert.Zero(t, parseRetryAfter(past))
}

func TestNextDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2}
	d := p.InitialDelay
	d = nextDelay(d, p)
	assert.Equal(t, 200*time.Millisecond, d)
	d = nextDelay(d, p)
	assert.Equal(t, 300*time.Millisecond, d)
}

package cassandra

import (
	"errors"
	"testing"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
)

func TestParseConsistency(t *testing.T) {
	tests := map[string]gocql.Consistency{
		"ONE":          gocql.One,
		"local_quorum": gocql.LocalQuorum,
		"ALL":          gocql.All,
		"bogus":        gocql.Quorum,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseConsistency(in), in)
	}
}

func TestRetryPolicy_GetRetryType(t *testing.T) {
	p := &simpleRetryPolicy{maxRetries: 3}

	assert.Equal(t, gocql.Retry, p.GetRetryType(gocql.ErrTimeoutNoResponse))
	assert.Equal(t, gocql.Retry, p.GetRetryType(errors.New("Connection reset by peer")))
	assert.Equal(t, gocql.Retry, p.GetRetryType(errors.New("cannot achieve consistency: unavailable")))
	assert.Equal(t, gocql.Rethrow, p.GetRetryType(errors.New("syntax error")))
}

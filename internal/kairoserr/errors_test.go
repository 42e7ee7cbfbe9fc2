package kairoserr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"config error", Config("load", errors.New("bad")), 1},
		{"data quality strict failure", DataQuality("validate", errors.New("too many gaps")), 3},
		{"agent fatal", Agent("decide", errors.New("protocol")), 2},
		{"invariant violation", Invariant("apply_fill", errors.New("negative cash")), 2},
		{"io failure", IO("write", errors.New("disk full")), 2},
		{"risk halt is not an error exit", RiskHalted("pre_trade_check", errors.New("halted")), 0},
		{"cancellation", context.Canceled, 130},
		{"untagged error", errors.New("boom"), 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExitCode(tc.err))
		})
	}
}

func TestKindOf_UnwrapsWrappedError(t *testing.T) {
	err := Config("load", errors.New("bad"))
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindConfig, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

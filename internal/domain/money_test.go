package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in   string
		want Money
	}{
		{"199.99", 19999},
		{"30", 3000},
		{"30.0", 3000},
		{"0.5", 50},
		{" 49.99 ", 4999},
		{"0.01", 1},
	}
	for _, tt := range tests {
		got, err := ParseMoney(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseMoney_Invalid(t *testing.T) {
	for _, in := range []string{"", "-1.00", "1.234", "1.", ".50", "abc", "1.-5", "+3"} {
		_, err := ParseMoney(in)
		assert.Error(t, err, in)
	}
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "0.00", Money(0).String())
	assert.Equal(t, "0.05", Money(5).String())
	assert.Equal(t, "120.00", Money(12000).String())
	assert.Equal(t, "-1.50", Money(-150).String())
}

func TestMoney_Times(t *testing.T) {
	assert.Equal(t, Money(6000), Money(3000).Times(2))
}

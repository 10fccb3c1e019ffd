package appid

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []uint32
	}{
		{name: "single", args: []string{"730"}, want: []uint32{730}},
		{name: "order preserved", args: []string{"730", "440"}, want: []uint32{730, 440}},
		{name: "duplicates kept", args: []string{"440", "730", "440"}, want: []uint32{440, 730, 440}},
		{name: "zero", args: []string{"0"}, want: []uint32{0}},
		{name: "max uint32", args: []string{"4294967295"}, want: []uint32{4294967295}},
		{name: "leading zeros", args: []string{"00730"}, want: []uint32{730}},
		{name: "plus sign and spaces", args: []string{" +730 "}, want: []uint32{730}},
		{name: "empty list", args: []string{}, want: []uint32{}},
		{name: "nil list", args: nil, want: []uint32{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantIndex int
		wantValue string
		wantErr   error
	}{
		{name: "word after valid id", args: []string{"730", "abc"}, wantIndex: 1, wantValue: "abc", wantErr: strconv.ErrSyntax},
		{name: "negative", args: []string{"-5"}, wantIndex: 0, wantValue: "-5", wantErr: strconv.ErrSyntax},
		{name: "hex", args: []string{"0x2da"}, wantIndex: 0, wantValue: "0x2da", wantErr: strconv.ErrSyntax},
		{name: "float", args: []string{"7.3"}, wantIndex: 0, wantValue: "7.3", wantErr: strconv.ErrSyntax},
		{name: "underscore", args: []string{"1_000"}, wantIndex: 0, wantValue: "1_000", wantErr: strconv.ErrSyntax},
		{name: "overflow", args: []string{"440", "4294967296"}, wantIndex: 1, wantValue: "4294967296", wantErr: strconv.ErrRange},
		{name: "first error wins", args: []string{"x", "y"}, wantIndex: 0, wantValue: "x", wantErr: strconv.ErrSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.args)
			require.Error(t, err)
			assert.Nil(t, got, "no partial list on failure")

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "error should be a *ParseError, got %T", err)
			assert.Equal(t, tt.wantIndex, parseErr.Index)
			assert.Equal(t, tt.wantValue, parseErr.Value)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse([]string{"  "})

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, err.Error(), "empty value")
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "", Join(nil))
	assert.Equal(t, "730", Join([]uint32{730}))
	assert.Equal(t, "730,440,730", Join([]uint32{730, 440, 730}))
}

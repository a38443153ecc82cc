package views

import (
	"bytes"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hangarlinks/hangarlinks/internal/pkg/viewmodel"
)

func TestMoney(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{12.5, "12.50"},
		{1200, "1,200.00"},
		{1234567.891, "1,234,567.89"},
		{-450, "-450.00"},
	}
	for _, tc := range cases {
		if got := Money(tc.in); got != tc.want {
			t.Fatalf("Money(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
	assert.Equal(t, "499.00", Cents(49900))
}

func TestEngineRendersPageInLayout(t *testing.T) {
	engine := NewEngine()
	require.NoError(t, engine.Load())

	var buf bytes.Buffer
	err := engine.Render(&buf, "pages/terms", fiber.Map{
		"Layout": viewmodel.Layout{Title: "Terms of Service", Year: 2026},
	}, Layout)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "<title>Terms of Service | HangarLinks</title>")
	assert.Contains(t, buf.String(), "Log in")
	assert.Contains(t, buf.String(), "&copy; 2026 HangarLinks")
}

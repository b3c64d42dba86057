// Copyright 2025 Certen Protocol

package cel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTripSkip(t *testing.T) {
	m := &Model{Skip: true}
	text := Emit(m)
	require.False(t, strings.ContainsAny(text, " \t\n\r"))

	parsed, err := Parse(text)
	require.NoError(t, err)
	require.True(t, m.Equal(parsed))
}

func TestRoundTripResponseOnly(t *testing.T) {
	m := &Model{
		Response: &ResponseCertification{Kind: CertifiedHeaders, Headers: []string{"Content-Type"}},
	}
	text := Emit(m)
	parsed, err := Parse(text)
	require.NoError(t, err)
	require.True(t, m.Equal(parsed))
}

func TestRoundTripFull(t *testing.T) {
	m := &Model{
		Request: &RequestCertification{
			CertifiedHeaders:     []string{"Host"},
			CertifiedQueryParams: []string{"q"},
		},
		Response: &ResponseCertification{Kind: HeaderExclusions, Headers: []string{"Set-Cookie", "IC-Certificate"}},
	}
	text := Emit(m)
	parsed, err := Parse(text)
	require.NoError(t, err)
	require.True(t, m.Equal(parsed))
}

func TestParseToleratesWhitespace(t *testing.T) {
	text := `default_certification( ValidationArgs { no_certification : Empty {  }  } )`
	m, err := Parse(text)
	require.NoError(t, err)
	require.True(t, m.Skip)
}

func TestParseRejectsUnknownFunction(t *testing.T) {
	_, err := Parse(`other_function(ValidationArgs{no_certification:Empty{}})`)
	var unrec *UnrecognizedFunctionError
	require.ErrorAs(t, err, &unrec)
}

func TestParseRejectsMissingProperty(t *testing.T) {
	_, err := Parse(`default_certification(ValidationArgs{}})`)
	require.Error(t, err)
}

func TestEmitNoWhitespace(t *testing.T) {
	m := &Model{
		Request:  &RequestCertification{CertifiedHeaders: []string{"Host"}, CertifiedQueryParams: nil},
		Response: &ResponseCertification{Kind: CertifiedHeaders, Headers: []string{"Content-Type"}},
	}
	text := Emit(m)
	require.Equal(t, text, strings.ReplaceAll(text, " ", ""))
}

func TestHashStableAcrossEquivalentModels(t *testing.T) {
	m1 := &Model{Skip: true}
	m2 := &Model{Skip: true}
	require.Equal(t, Hash(m1), Hash(m2))
}

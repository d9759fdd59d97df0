package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewID_ReturnsValidUUIDString(t *testing.T) {
	id := NewID()
	assert.NotEmpty(t, id)
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, id)
}

func TestRemoteUserID_Deterministic(t *testing.T) {
	a := RemoteUserID("joao.silva@example.com")
	b := RemoteUserID("joao.silva@example.com")
	assert.Equal(t, a, b)
	assert.Regexp(t, `^joao_silva_[0-9a-f]{6}$`, a)
}

func TestRemoteUserID_SameLocalPartDifferentDomain(t *testing.T) {
	a := RemoteUserID("a@x.com")
	b := RemoteUserID("a@y.com")
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^a_[0-9a-f]{6}$`, a)
	assert.Regexp(t, `^a_[0-9a-f]{6}$`, b)
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"Maria Souza", "maria_souza"},
		{"acme.corp+dev", "acme_corp_dev"},
		{"ALL_CAPS", "all_caps"},
		{"--edge--", "edge"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.out, Slug(tt.in), "input=%q", tt.in)
	}
}

func TestNewPassword_LengthAndUniqueness(t *testing.T) {
	a := NewPassword(16)
	b := NewPassword(16)
	assert.Len(t, a, 20)
	assert.NotEqual(t, a, b)
}

func TestNewToken_Format(t *testing.T) {
	tok := NewToken(64)
	assert.Regexp(t, `^[A-Za-z0-9]{64}$`, tok)
	assert.NotEqual(t, tok, NewToken(64))
}

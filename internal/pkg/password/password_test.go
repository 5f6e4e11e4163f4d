package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testParams() Params {
	// Small costs so the suite stays fast.
	return Params{Time: 1, MemoryKB: 8 * 1024, Parallelism: 1, SaltLen: 16, KeyLen: 32}
}

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(testParams())

	encoded, err := h.Hash("Sup3r$ecret")
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$"))

	assert.True(t, h.Verify("Sup3r$ecret", encoded))
	assert.False(t, h.Verify("Sup3r$ecret ", encoded))
	assert.False(t, h.Verify("wrong", encoded))
}

func TestHasher_HashesAreSalted(t *testing.T) {
	h := NewHasher(testParams())

	a, err := h.Hash("same-password")
	assert.NoError(t, err)
	b, err := h.Hash("same-password")
	assert.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify("same-password", a))
	assert.True(t, h.Verify("same-password", b))
}

func TestHasher_VerifyMalformed(t *testing.T) {
	h := NewHasher(testParams())

	assert.False(t, h.Verify("anything", ""))
	assert.False(t, h.Verify("anything", "$2a$10$notargon"))
	assert.False(t, h.Verify("anything", "$argon2id$v=19$garbage"))
}

func TestHasher_NeedsRehash(t *testing.T) {
	old := NewHasher(Params{Time: 1, MemoryKB: 8 * 1024, Parallelism: 1, SaltLen: 16, KeyLen: 32})
	current := NewHasher(Params{Time: 2, MemoryKB: 16 * 1024, Parallelism: 1, SaltLen: 16, KeyLen: 32})

	encoded, err := old.Hash("pw")
	assert.NoError(t, err)

	assert.True(t, current.NeedsRehash(encoded))
	assert.False(t, old.NeedsRehash(encoded))
	assert.True(t, current.NeedsRehash("malformed"))
}

func TestPolicy_Validate(t *testing.T) {
	p := Policy{MinLength: 8, RequireUppercase: true, RequireNumber: true, RequireSpecial: true}

	ok, missing := p.Validate("Abcdef1!")
	assert.True(t, ok)
	assert.Empty(t, missing)

	ok, missing = p.Validate("abc")
	assert.False(t, ok)
	assert.Contains(t, missing, "min_length_8")
	assert.Contains(t, missing, MissingUppercase)
	assert.Contains(t, missing, MissingNumber)
	assert.Contains(t, missing, MissingSpecial)

	ok, missing = p.Validate("Abcdefgh1")
	assert.False(t, ok)
	assert.Equal(t, []string{MissingSpecial}, missing)
}

func TestPolicy_Disabled(t *testing.T) {
	p := Policy{MinLength: 4}

	ok, missing := p.Validate("abcd")
	assert.True(t, ok)
	assert.Empty(t, missing)
}

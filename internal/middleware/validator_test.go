package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateMode(t *testing.T) {
	assert.NoError(t, ValidateMode(""))
	assert.NoError(t, ValidateMode("detailed"))
	assert.NoError(t, ValidateMode("Beginner"))
	assert.Error(t, ValidateMode("expert"))
}

func TestValidateFilename(t *testing.T) {
	assert.NoError(t, ValidateFilename(""))
	assert.NoError(t, ValidateFilename("Token.sol"))
	assert.Error(t, ValidateFilename("token.rs"))
	assert.Error(t, ValidateFilename("../token.sol"))
	assert.Error(t, ValidateFilename("dir/token.sol"))
	assert.Error(t, ValidateFilename(`dir\token.sol`))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("dev@example.com"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("not-an-email"))
	assert.Error(t, ValidateEmail("two@at@example.com"))
}

func TestValidateTenantID(t *testing.T) {
	assert.NoError(t, ValidateTenantID("acme"))
	assert.NoError(t, ValidateTenantID("acme-prod_01"))
	assert.Error(t, ValidateTenantID(""))
	assert.Error(t, ValidateTenantID("acme corp"))
	assert.Error(t, ValidateTenantID("a/b"))
}

func TestValidateReportID(t *testing.T) {
	assert.NoError(t, ValidateReportID("123e4567-e89b-4d3a-a456-426614174000-abc123def456"))
	assert.Error(t, ValidateReportID(""))
	assert.Error(t, ValidateReportID("123e4567-e89b-4d3a-a456-426614174000"))
	assert.Error(t, ValidateReportID("not-a-report-id"))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello \x00"))
	assert.Equal(t, "line1\nline2", SanitizeString("line1\nline2"))
	assert.Equal(t, "ab", SanitizeString("a\x07b"))
}

func TestValidateLimit(t *testing.T) {
	assert.Equal(t, 20, ValidateLimit(0))
	assert.Equal(t, 20, ValidateLimit(-5))
	assert.Equal(t, 50, ValidateLimit(50))
	assert.Equal(t, 100, ValidateLimit(1000))
}

func TestValidateDays(t *testing.T) {
	assert.Equal(t, 7, ValidateDays(0))
	assert.Equal(t, 30, ValidateDays(30))
	assert.Equal(t, 365, ValidateDays(9999))
}

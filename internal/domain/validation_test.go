package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	v := NewEmailValidator(0)

	tests := []struct {
		name     string
		username string
		expected error
	}{
		{"Valid username", "testuser", nil},
		{"Valid uppercase is normalized", "TestUser", nil},
		{"Valid with dots and dashes", "john.doe-99", nil},
		{"Valid single char", "a", nil},
		{"Invalid - empty", "", ErrInvalidUsername},
		{"Invalid - spaces inside", "test user", ErrInvalidUsername},
		{"Invalid - special characters", "test$user", ErrInvalidUsername},
		{"Invalid - starts with dot", ".test", ErrInvalidUsername},
		{"Invalid - double dot", "te..st", ErrInvalidUsername},
		{"Invalid - too long", string(make65()), ErrLocalPartTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, v.ValidateUsername(tt.username))
		})
	}
}

func make65() []byte {
	b := make([]byte, 65)
	for i := range b {
		b[i] = 'a'
	}
	return b
}

func TestCheckUsername(t *testing.T) {
	v := NewEmailValidator(4)

	t.Run("短用户名只给出警告", func(t *testing.T) {
		w := v.CheckUsername("abc")
		if assert.NotNil(t, w) {
			assert.Equal(t, 3, w.Length)
			assert.Equal(t, 4, w.Min)
			assert.Contains(t, w.Error(), "shorter than 4")
		}
		// 硬性校验依然通过
		assert.NoError(t, v.ValidateUsername("abc"))
	})

	t.Run("长度足够无警告", func(t *testing.T) {
		assert.Nil(t, v.CheckUsername("abcd"))
	})
}

func TestValidateEmail(t *testing.T) {
	v := NewEmailValidator(0)

	tests := []struct {
		name  string
		email string
		valid bool
	}{
		{"Valid email", "test@example.com", true},
		{"Valid email with subdomain", "user@mail.example.com", true},
		{"Invalid email - no @", "testexample.com", false},
		{"Invalid email - no domain", "test@", false},
		{"Invalid email - multiple @", "test@@example.com", false},
		{"Invalid email - empty", "", false},
		{"Invalid domain", "test@-bad-.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateEmail(tt.email)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

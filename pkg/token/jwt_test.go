package token

import (
	"errors"
	"strings"
	"testing"
)

func TestJWTManager_GenerateAndVerify(t *testing.T) {
	m := NewJWTManager("test-secret", 24)

	tokenString, err := m.Generate("a@x.com")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	subject, err := m.Verify(tokenString)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if subject != "a@x.com" {
		t.Errorf("subject = %q, want %q", subject, "a@x.com")
	}
}

func TestJWTManager_VerifyExpired(t *testing.T) {
	// 有效期为 0 小时，签发即过期
	m := NewJWTManager("test-secret", 0)

	tokenString, err := m.Generate("a@x.com")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	_, err = m.Verify(tokenString)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Verify error = %v, want ErrTokenExpired", err)
	}
}

func TestJWTManager_VerifyTampered(t *testing.T) {
	m := NewJWTManager("test-secret", 24)

	tokenString, err := m.Generate("a@x.com")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// 逐个位置翻转一个字节，验证都必须失败
	for _, pos := range []int{0, len(tokenString) / 2, len(tokenString) - 1} {
		raw := []byte(tokenString)
		if raw[pos] == 'A' {
			raw[pos] = 'B'
		} else {
			raw[pos] = 'A'
		}
		tampered := string(raw)
		if tampered == tokenString {
			continue
		}
		if _, err := m.Verify(tampered); err == nil {
			t.Errorf("Verify accepted tampered token (byte %d)", pos)
		}
	}
}

func TestJWTManager_VerifyWrongSecret(t *testing.T) {
	m := NewJWTManager("secret-one", 24)
	other := NewJWTManager("secret-two", 24)

	tokenString, err := m.Generate("a@x.com")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if _, err := other.Verify(tokenString); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify error = %v, want ErrInvalidToken", err)
	}
}

func TestJWTManager_VerifyMalformed(t *testing.T) {
	m := NewJWTManager("test-secret", 24)

	for _, tokenString := range []string{"", "not-a-jwt", strings.Repeat("x.", 10)} {
		if _, err := m.Verify(tokenString); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q) error = %v, want ErrInvalidToken", tokenString, err)
		}
	}
}

package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateToken_Claims(t *testing.T) {
	token, err := GenerateToken("secret", 7, "alice", "a@x.com", 24*time.Hour)
	if err != nil {
		t.Fatalf("ошибка генерации токена: %v", err)
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("токен не прошёл проверку: %v", err)
	}

	if int(claims["user_id"].(float64)) != 7 {
		t.Fatalf("user_id: ожидалось 7, получено %v", claims["user_id"])
	}
	if claims["username"] != "alice" || claims["email"] != "a@x.com" {
		t.Fatalf("клеймы не совпадают: %v", claims)
	}

	exp := time.Unix(int64(claims["exp"].(float64)), 0)
	if until := time.Until(exp); until < 23*time.Hour || until > 25*time.Hour {
		t.Fatalf("exp должен быть ~через сутки, получено %v", until)
	}
}

func TestGenerateToken_ExpiredRejected(t *testing.T) {
	// Симулируем «скачок часов»: токен выписан с уже истёкшим сроком
	token, err := GenerateToken("secret", 7, "alice", "a@x.com", -time.Minute)
	if err != nil {
		t.Fatalf("ошибка генерации токена: %v", err)
	}

	_, err = jwt.ParseWithClaims(token, jwt.MapClaims{}, func(*jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	if err == nil {
		t.Fatal("просроченный токен должен отклоняться")
	}
}

func TestGenerateToken_WrongSecretRejected(t *testing.T) {
	token, err := GenerateToken("secret", 7, "alice", "a@x.com", time.Hour)
	if err != nil {
		t.Fatalf("ошибка генерации токена: %v", err)
	}

	parsed, err := jwt.ParseWithClaims(token, jwt.MapClaims{}, func(*jwt.Token) (interface{}, error) {
		return []byte("other-secret"), nil
	})
	if err == nil && parsed.Valid {
		t.Fatal("токен с чужой подписью должен отклоняться")
	}
}

func TestHashPassword_Verify(t *testing.T) {
	hash, err := HashPassword("password1")
	if err != nil {
		t.Fatalf("ошибка хеширования: %v", err)
	}
	if hash == "password1" {
		t.Fatal("хеш совпадает с паролем")
	}
	if !CheckPasswordHash("password1", hash) {
		t.Fatal("верный пароль не прошёл проверку")
	}
	if CheckPasswordHash("password2", hash) {
		t.Fatal("неверный пароль прошёл проверку")
	}
}

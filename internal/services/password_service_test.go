package services

import (
	"authgate/internal/models"
	"authgate/internal/utils"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

type tokenRec struct {
	userID    int64
	expiresAt time.Time
	used      bool
}

// passwordFixture — in-memory замена обоих репозиториев для PasswordService.
type passwordFixture struct {
	users  map[int]*models.User
	tokens map[string]*tokenRec // ключ — хеш токена
}

func newPasswordFixture() *passwordFixture {
	return &passwordFixture{
		users:  make(map[int]*models.User),
		tokens: make(map[string]*tokenRec),
	}
}

func (f *passwordFixture) Create(_ context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	f.tokens[tokenHash] = &tokenRec{userID: userID, expiresAt: expiresAt}
	return nil
}

// Redeem повторяет контракт настоящего репозитория: все три невалидных
// случая выглядят как pgx.ErrNoRows.
func (f *passwordFixture) Redeem(_ context.Context, tokenHash string, newPasswordHash string) (int64, error) {
	rec, ok := f.tokens[tokenHash]
	if !ok || rec.used || !rec.expiresAt.After(time.Now()) {
		return 0, pgx.ErrNoRows
	}
	rec.used = true
	f.users[int(rec.userID)].PasswordHash = newPasswordHash
	return rec.userID, nil
}

func (f *passwordFixture) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *passwordFixture) GetUserByID(_ context.Context, id int) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

func (f *passwordFixture) UpdatePasswordHash(_ context.Context, userID int64, passwordHash string) error {
	f.users[int(userID)].PasswordHash = passwordHash
	return nil
}

// capturingSender перехватывает письма вместо отправки.
type capturingSender struct {
	resetLinks   []string
	changedTo    []string
	failOnReset  bool
	failOnChange bool
}

func (s *capturingSender) SendPasswordReset(_ context.Context, _, _, resetLink string) error {
	if s.failOnReset {
		return errors.New("smtp down")
	}
	s.resetLinks = append(s.resetLinks, resetLink)
	return nil
}

func (s *capturingSender) SendPasswordChanged(_ context.Context, to, _ string) error {
	if s.failOnChange {
		return errors.New("smtp down")
	}
	s.changedTo = append(s.changedTo, to)
	return nil
}

func newFixtureService(f *passwordFixture, sender *capturingSender) *PasswordService {
	return NewPasswordService(f, f, sender, "https://example.com", time.Hour)
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("невалидная ссылка в письме: %v", err)
	}
	token := u.Query().Get("token")
	if token == "" {
		t.Fatalf("в ссылке нет токена: %s", link)
	}
	return token
}

func TestRequestReset_UnknownEmail(t *testing.T) {
	f := newPasswordFixture()
	sender := &capturingSender{}
	svc := newFixtureService(f, sender)

	if err := svc.RequestReset(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("неизвестный email не должен давать ошибку: %v", err)
	}
	if len(sender.resetLinks) != 0 {
		t.Fatal("письмо отправлено для несуществующего аккаунта")
	}
	if len(f.tokens) != 0 {
		t.Fatal("токен создан для несуществующего аккаунта")
	}
}

func TestRequestReset_StoresOnlyHash(t *testing.T) {
	f := newPasswordFixture()
	f.users[1] = &models.User{ID: 1, Username: "alice", Email: "a@x.com"}
	sender := &capturingSender{}
	svc := newFixtureService(f, sender)

	if err := svc.RequestReset(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("ошибка запроса сброса: %v", err)
	}
	if len(sender.resetLinks) != 1 {
		t.Fatalf("ожидалось одно письмо, отправлено %d", len(sender.resetLinks))
	}

	token := tokenFromLink(t, sender.resetLinks[0])
	if len(token) != 64 {
		t.Fatalf("секрет должен быть 64-символьной hex-строкой, получено %d символов", len(token))
	}
	if _, err := hex.DecodeString(token); err != nil {
		t.Fatalf("секрет не hex: %v", err)
	}

	// В хранилище — только sha256-хеш, не сам секрет
	sum := sha256.Sum256([]byte(token))
	wantHash := hex.EncodeToString(sum[:])
	if _, ok := f.tokens[wantHash]; !ok {
		t.Fatal("в хранилище нет записи с хешем секрета")
	}
	if _, ok := f.tokens[token]; ok {
		t.Fatal("в хранилище лежит секрет в открытом виде")
	}
}

func TestRequestReset_DeliveryFailure(t *testing.T) {
	f := newPasswordFixture()
	f.users[1] = &models.User{ID: 1, Username: "alice", Email: "a@x.com"}
	sender := &capturingSender{failOnReset: true}
	svc := newFixtureService(f, sender)

	err := svc.RequestReset(context.Background(), "a@x.com")
	if !errors.Is(err, ErrEmailDelivery) {
		t.Fatalf("ожидался ErrEmailDelivery, получено: %v", err)
	}
}

func TestResetPassword_Success(t *testing.T) {
	f := newPasswordFixture()
	oldHash, _ := utils.HashPassword("password1")
	f.users[1] = &models.User{ID: 1, Username: "alice", Email: "a@x.com", PasswordHash: oldHash}
	sender := &capturingSender{}
	svc := newFixtureService(f, sender)

	if err := svc.RequestReset(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("ошибка запроса сброса: %v", err)
	}
	token := tokenFromLink(t, sender.resetLinks[0])

	if err := svc.ResetPassword(context.Background(), token, "password2"); err != nil {
		t.Fatalf("ошибка сброса пароля: %v", err)
	}

	if utils.CheckPasswordHash("password1", f.users[1].PasswordHash) {
		t.Fatal("старый пароль всё ещё подходит")
	}
	if !utils.CheckPasswordHash("password2", f.users[1].PasswordHash) {
		t.Fatal("новый пароль не подходит")
	}
	if len(sender.changedTo) != 1 || sender.changedTo[0] != "a@x.com" {
		t.Fatal("не отправлено подтверждение смены пароля")
	}
}

func TestResetPassword_SingleUse(t *testing.T) {
	f := newPasswordFixture()
	f.users[1] = &models.User{ID: 1, Username: "alice", Email: "a@x.com"}
	sender := &capturingSender{}
	svc := newFixtureService(f, sender)

	if err := svc.RequestReset(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("ошибка запроса сброса: %v", err)
	}
	token := tokenFromLink(t, sender.resetLinks[0])

	if err := svc.ResetPassword(context.Background(), token, "password2"); err != nil {
		t.Fatalf("первое гашение должно пройти: %v", err)
	}

	// Повторное гашение того же секрета — всегда отказ
	for i := 0; i < 2; i++ {
		err := svc.ResetPassword(context.Background(), token, "password3")
		if !errors.Is(err, ErrInvalidOrExpiredToken) {
			t.Fatalf("повтор %d: ожидался ErrInvalidOrExpiredToken, получено: %v", i+1, err)
		}
	}
	if utils.CheckPasswordHash("password3", f.users[1].PasswordHash) {
		t.Fatal("повторное гашение сменило пароль")
	}
}

func TestResetPassword_IndistinguishableFailures(t *testing.T) {
	f := newPasswordFixture()
	f.users[1] = &models.User{ID: 1, Username: "alice", Email: "a@x.com"}
	sender := &capturingSender{}
	svc := newFixtureService(f, sender)

	// Просроченный токен: создаём запись с истёкшим expires_at
	if err := svc.RequestReset(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("ошибка запроса сброса: %v", err)
	}
	expiredToken := tokenFromLink(t, sender.resetLinks[0])
	for _, rec := range f.tokens {
		rec.expiresAt = time.Now().Add(-time.Minute)
	}

	// Использованный токен
	if err := svc.RequestReset(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("ошибка запроса сброса: %v", err)
	}
	usedToken := tokenFromLink(t, sender.resetLinks[1])
	if err := svc.ResetPassword(context.Background(), usedToken, "password2"); err != nil {
		t.Fatalf("гашение валидного токена: %v", err)
	}

	cases := map[string]string{
		"неизвестный":    strings.Repeat("ab", 32),
		"просроченный":   expiredToken,
		"использованный": usedToken,
	}
	for name, token := range cases {
		err := svc.ResetPassword(context.Background(), token, "password3")
		if !errors.Is(err, ErrInvalidOrExpiredToken) {
			t.Fatalf("%s токен: ожидался ErrInvalidOrExpiredToken, получено: %v", name, err)
		}
		// Все три случая неотличимы: одна и та же ошибка с одним текстом
		if err.Error() != ErrInvalidOrExpiredToken.Error() {
			t.Fatalf("%s токен: текст ошибки отличается: %q", name, err.Error())
		}
	}
}

func TestResetPassword_TooShort(t *testing.T) {
	f := newPasswordFixture()
	sender := &capturingSender{}
	svc := newFixtureService(f, sender)

	err := svc.ResetPassword(context.Background(), "whatever", "short")
	if !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("ожидался ErrPasswordTooShort, получено: %v", err)
	}
}

func TestResetPassword_ConfirmationFailureIsSwallowed(t *testing.T) {
	f := newPasswordFixture()
	f.users[1] = &models.User{ID: 1, Username: "alice", Email: "a@x.com"}
	sender := &capturingSender{}
	svc := newFixtureService(f, sender)

	if err := svc.RequestReset(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("ошибка запроса сброса: %v", err)
	}
	token := tokenFromLink(t, sender.resetLinks[0])

	// Пароль уже сменён — сбой письма-подтверждения не должен всплывать
	sender.failOnChange = true
	if err := svc.ResetPassword(context.Background(), token, "password2"); err != nil {
		t.Fatalf("сбой подтверждения не должен ломать сброс: %v", err)
	}
	if !utils.CheckPasswordHash("password2", f.users[1].PasswordHash) {
		t.Fatal("пароль не сменился")
	}
}

func TestChangePassword(t *testing.T) {
	f := newPasswordFixture()
	oldHash, _ := utils.HashPassword("password1")
	f.users[1] = &models.User{ID: 1, Username: "alice", Email: "a@x.com", PasswordHash: oldHash}
	sender := &capturingSender{}
	svc := newFixtureService(f, sender)

	if err := svc.ChangePassword(context.Background(), 1, "wrongpass", "password2", oldHash); !errors.Is(err, ErrOldPasswordMismatch) {
		t.Fatalf("ожидался ErrOldPasswordMismatch, получено: %v", err)
	}

	if err := svc.ChangePassword(context.Background(), 1, "password1", "password2", oldHash); err != nil {
		t.Fatalf("ошибка смены пароля: %v", err)
	}
	if !utils.CheckPasswordHash("password2", f.users[1].PasswordHash) {
		t.Fatal("новый пароль не подходит")
	}
}

package users

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/labinventory-backend/internal/access"
	"github.com/angelmondragon/labinventory-backend/pkg/config"
	"github.com/angelmondragon/labinventory-backend/pkg/db"
	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labinventory-backend/pkg/errors"
	"github.com/angelmondragon/labinventory-backend/pkg/security"
	"github.com/angelmondragon/labinventory-backend/pkg/storage/local"
)

type memoryRepo struct {
	users   map[uuid.UUID]*models.User
	updates int
}

func newMemoryRepo(users ...*models.User) *memoryRepo {
	repo := &memoryRepo{users: map[uuid.UUID]*models.User{}}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *memoryRepo) Create(_ context.Context, dto CreateUserDTO) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == dto.Username {
			return nil, db.ErrDuplicate
		}
	}
	user := dto.ToModel()
	copied := *user
	m.users[user.ID] = &copied
	return user, nil
}

func (m *memoryRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memoryRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]models.User, error) {
	out := []models.User{}
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memoryRepo) FindByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memoryRepo) List(_ context.Context, role *enums.Role) ([]models.User, error) {
	out := []models.User{}
	for _, u := range m.users {
		if role == nil || u.Role == *role {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memoryRepo) Update(_ context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return db.ErrNotFound
	}
	m.updates++
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.users[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memoryRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	if u, ok := m.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

func (m *memoryRepo) ListIDsByRole(_ context.Context, role enums.Role) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, u := range m.users {
		if u.Role == role {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memoryRepo) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.users[id]
	return ok, nil
}

type stubLoans struct {
	open int64
	err  error
}

func (s stubLoans) CountOpenByUser(context.Context, uuid.UUID) (int64, error) {
	return s.open, s.err
}

func seededUser(t *testing.T, username string, role enums.Role, password string) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	require.NoError(t, err)
	return &models.User{ID: uuid.New(), Username: username, PasswordHash: hash, Role: role, Name: username}
}

func newAdminService(t *testing.T, repo Repository, loans OpenLoanCounter) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo, Loans: loans})
	require.NoError(t, err)
	return svc
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code(), "error: %v", err)
}

func TestAdminServiceRequiresAdmin(t *testing.T) {
	guru := access.Actor{UserID: uuid.New(), Role: enums.RoleGuru}
	svc := newAdminService(t, newMemoryRepo(), stubLoans{})

	_, err := svc.List(context.Background(), guru, nil)
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = svc.Create(context.Background(), guru, CreateInput{Username: "x", Password: "secret1", Role: enums.RoleGuru, Name: "x"})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestAdminServiceCreate(t *testing.T) {
	admin := access.Actor{UserID: uuid.New(), Role: enums.RoleAdmin}
	repo := newMemoryRepo()
	svc := newAdminService(t, repo, stubLoans{})

	email := " teacher@school.test "
	dto, err := svc.Create(context.Background(), admin, CreateInput{
		Username: " Guru1 ",
		Password: "secret1",
		Role:     enums.RoleGuru,
		Name:     "Ibu Sari",
		Email:    &email,
	})
	require.NoError(t, err)
	assert.Equal(t, "guru1", dto.Username)
	require.NotNil(t, dto.Email)
	assert.Equal(t, "teacher@school.test", *dto.Email)

	stored, err := repo.FindByUsername(context.Background(), "guru1")
	require.NoError(t, err)
	ok, err := security.VerifyPassword("secret1", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.Create(context.Background(), admin, CreateInput{Username: "guru1", Password: "secret1", Role: enums.RoleGuru, Name: "Dup"})
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestAdminServiceCreateValidation(t *testing.T) {
	admin := access.Actor{UserID: uuid.New(), Role: enums.RoleAdmin}
	svc := newAdminService(t, newMemoryRepo(), stubLoans{})

	_, err := svc.Create(context.Background(), admin, CreateInput{Username: "", Password: "123", Role: "OWNER"})
	requireCode(t, err, pkgerrors.CodeValidation)
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	for _, field := range []string{"username", "password", "role", "name"} {
		assert.NotEmpty(t, details[field], field)
	}
}

func TestAdminServiceUpdate(t *testing.T) {
	admin := access.Actor{UserID: uuid.New(), Role: enums.RoleAdmin}
	target := seededUser(t, "guru1", enums.RoleGuru, "secret1")
	other := seededUser(t, "guru2", enums.RoleGuru, "secret1")
	repo := newMemoryRepo(target, other)
	svc := newAdminService(t, repo, stubLoans{})

	_, err := svc.Update(context.Background(), admin, target.ID, UpdateInput{})
	requireCode(t, err, pkgerrors.CodeValidation)

	taken := "guru2"
	_, err = svc.Update(context.Background(), admin, target.ID, UpdateInput{Username: &taken})
	requireCode(t, err, pkgerrors.CodeConflict)

	name := "Pak Budi"
	password := "newsecret"
	role := enums.RoleAdmin
	dto, err := svc.Update(context.Background(), admin, target.ID, UpdateInput{Name: &name, Password: &password, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, "Pak Budi", dto.Name)
	assert.Equal(t, enums.RoleAdmin, dto.Role)

	stored, _ := repo.FindByID(context.Background(), target.ID)
	ok, err := security.VerifyPassword("newsecret", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.Update(context.Background(), admin, uuid.New(), UpdateInput{Name: &name})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestAdminServiceDelete(t *testing.T) {
	admin := access.Actor{UserID: uuid.New(), Role: enums.RoleAdmin}
	target := seededUser(t, "guru1", enums.RoleGuru, "secret1")
	repo := newMemoryRepo(target)

	err := newAdminService(t, repo, stubLoans{}).Delete(context.Background(), admin, admin.UserID)
	requireCode(t, err, pkgerrors.CodeConflict)

	err = newAdminService(t, repo, stubLoans{open: 1}).Delete(context.Background(), admin, target.ID)
	requireCode(t, err, pkgerrors.CodeConflict)

	err = newAdminService(t, repo, stubLoans{err: errors.New("boom")}).Delete(context.Background(), admin, target.ID)
	requireCode(t, err, pkgerrors.CodeDependency)

	require.NoError(t, newAdminService(t, repo, stubLoans{}).Delete(context.Background(), admin, target.ID))
	ok, _ := repo.Exists(context.Background(), target.ID)
	assert.False(t, ok)
}

func TestAdminServiceListRoleFilter(t *testing.T) {
	admin := access.Actor{UserID: uuid.New(), Role: enums.RoleAdmin}
	repo := newMemoryRepo(
		seededUser(t, "admin", enums.RoleAdmin, "secret1"),
		seededUser(t, "guru1", enums.RoleGuru, "secret1"),
	)
	svc := newAdminService(t, repo, stubLoans{})

	role := enums.RoleGuru
	rows, err := svc.List(context.Background(), admin, &role)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "guru1", rows[0].Username)

	bad := enums.Role("OWNER")
	_, err = svc.List(context.Background(), admin, &bad)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func newProfile(t *testing.T, repo Repository) (ProfileService, *local.Store) {
	t.Helper()
	store, err := local.New(config.UploadsConfig{RootDir: t.TempDir(), PublicBaseURL: "/uploads"}, nil)
	require.NoError(t, err)
	svc, err := NewProfileService(ProfileServiceParams{Repo: repo, Images: store, MaxImage: 1024})
	require.NoError(t, err)
	return svc, store
}

func TestProfileUpdatePassword(t *testing.T) {
	user := seededUser(t, "guru1", enums.RoleGuru, "secret1")
	repo := newMemoryRepo(user)
	svc, _ := newProfile(t, repo)

	wrong := "nope"
	next := "another1"
	_, err := svc.Update(context.Background(), user.ID, ProfileInput{CurrentPassword: &wrong, NewPassword: &next})
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = svc.Update(context.Background(), user.ID, ProfileInput{NewPassword: &next})
	requireCode(t, err, pkgerrors.CodeValidation)

	current := "secret1"
	short := "abc"
	_, err = svc.Update(context.Background(), user.ID, ProfileInput{CurrentPassword: &current, NewPassword: &short})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Update(context.Background(), user.ID, ProfileInput{CurrentPassword: &current, NewPassword: &next})
	require.NoError(t, err)
	stored, _ := repo.FindByID(context.Background(), user.ID)
	ok, err := security.VerifyPassword(next, stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProfileUpdateNameAndEmail(t *testing.T) {
	user := seededUser(t, "guru1", enums.RoleGuru, "secret1")
	svc, _ := newProfile(t, newMemoryRepo(user))

	name := "  Ibu Ani "
	empty := ""
	dto, err := svc.Update(context.Background(), user.ID, ProfileInput{Name: &name, Email: &empty})
	require.NoError(t, err)
	assert.Equal(t, "Ibu Ani", dto.Name)
	assert.Nil(t, dto.Email)

	_, err = svc.Update(context.Background(), user.ID, ProfileInput{})
	requireCode(t, err, pkgerrors.CodeValidation)
}

// 1x1 transparent PNG.
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func TestProfileUploadImage(t *testing.T) {
	user := seededUser(t, "guru1", enums.RoleGuru, "secret1")
	svc, _ := newProfile(t, newMemoryRepo(user))

	dto, err := svc.UploadImage(context.Background(), user.ID, bytes.NewReader(pngPixel))
	require.NoError(t, err)
	require.NotNil(t, dto.ProfileImage)
	assert.Contains(t, *dto.ProfileImage, "/uploads/profiles/")
	assert.Contains(t, *dto.ProfileImage, ".png")

	_, err = svc.UploadImage(context.Background(), user.ID, bytes.NewReader([]byte("plain text, not an image")))
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.UploadImage(context.Background(), user.ID, bytes.NewReader(bytes.Repeat(pngPixel, 40)))
	requireCode(t, err, pkgerrors.CodeValidation)
}

package application

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-account-service/internal/domain/entity"
	"github.com/oksasatya/go-account-service/internal/infrastructure/search"
	"github.com/oksasatya/go-account-service/pkg/apperror"
	"github.com/oksasatya/go-account-service/pkg/mailer/templates"
)

func register(t *testing.T, f *fixture, in RegisterInput) *entity.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)
	return u
}

func TestRegister_LowercasesAndHidesSecrets(t *testing.T) {
	f := newFixture()
	u := register(t, f, annInput())

	assert.Equal(t, "annl", u.Username)
	assert.Equal(t, "ann@x.com", u.Email)
	assert.Equal(t, "https://cdn.example.com/tmp/avatar.png", u.AvatarURL)
	assert.Empty(t, u.CoverImageURL)

	b, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "password")
	assert.NotContains(t, string(b), "refreshToken")

	assert.Equal(t, []string{u.ID}, f.index.put)
	require.Len(t, f.notifier.jobs, 1)
	assert.Equal(t, templates.Welcome, f.notifier.jobs[0].Template)
	assert.Equal(t, "ann@x.com", f.notifier.jobs[0].To)
}

func TestRegister_DuplicateIdentifiers(t *testing.T) {
	f := newFixture()
	register(t, f, annInput())

	sameUsername := annInput()
	sameUsername.Email = "other@x.com"
	_, err := f.svc.Register(context.Background(), sameUsername)
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	sameEmail := annInput()
	sameEmail.Username = "someone"
	sameEmail.Email = "ANN@x.com"
	_, err = f.svc.Register(context.Background(), sameEmail)
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	different := annInput()
	different.Username = "bob"
	different.Email = "bob@x.com"
	register(t, f, different)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture()

	missing := annInput()
	missing.Fullname = "   "
	_, err := f.svc.Register(context.Background(), missing)
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	noAvatar := annInput()
	noAvatar.Avatar = nil
	_, err = f.svc.Register(context.Background(), noAvatar)
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	f.media.failFor["tmp/avatar.png"] = true
	_, err = f.svc.Register(context.Background(), annInput())
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	assert.Empty(t, f.notifier.jobs)
}

func TestRegister_PasswordTooLongRejectedBeforeUpload(t *testing.T) {
	f := newFixture()
	in := annInput()
	in.Password = strings.Repeat("a", 73)

	_, err := f.svc.Register(context.Background(), in)
	require.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Empty(t, f.media.paths)
	_, err = f.repo.FindByUsernameOrEmail(context.Background(), "annl", "ann@x.com")
	assert.Error(t, err)
}

func TestRegister_CoverUploadFailureIsTolerated(t *testing.T) {
	f := newFixture()
	in := annInput()
	in.CoverImage = &StagedFile{Path: "tmp/cover.png", Filename: "cover.png"}
	f.media.failFor["tmp/cover.png"] = true

	u := register(t, f, in)
	assert.Empty(t, u.CoverImageURL)
	assert.Equal(t, []string{"tmp/avatar.png", "tmp/cover.png"}, f.media.paths)
}

func TestRegister_SideEffectFailuresDoNotFail(t *testing.T) {
	f := newFixture()
	f.index.err = assert.AnError
	f.notifier.err = assert.AnError

	register(t, f, annInput())
}

func TestLogin(t *testing.T) {
	f := newFixture()
	created := register(t, f, annInput())

	res, err := f.svc.Login(context.Background(), LoginInput{Email: "ANN@x.com", Password: "p@ss1234"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, res.User.ID)
	assert.Empty(t, res.User.PasswordHash)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.Equal(t, res.Tokens.RefreshToken, f.repo.User(created.ID).RefreshToken)

	res, err = f.svc.Login(context.Background(), LoginInput{Username: "annl", Password: "p@ss1234"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, res.User.ID)
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture()
	created := register(t, f, annInput())

	_, err := f.svc.Login(context.Background(), LoginInput{Password: "p@ss1234"})
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = f.svc.Login(context.Background(), LoginInput{Username: "nobody", Password: "p@ss1234"})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = f.svc.Login(context.Background(), LoginInput{Username: "annl", Password: "wrong"})
	assert.True(t, apperror.Is(err, apperror.KindAuth))

	_, err = f.svc.Login(context.Background(), LoginInput{Username: "annl"})
	assert.True(t, apperror.Is(err, apperror.KindAuth))

	assert.Empty(t, f.repo.User(created.ID).RefreshToken)
}

func TestRefresh_RotatesAndDetectsReplay(t *testing.T) {
	f := newFixture()
	register(t, f, annInput())

	first, err := f.svc.Login(context.Background(), LoginInput{Username: "annl", Password: "p@ss1234"})
	require.NoError(t, err)

	rotated, err := f.svc.Refresh(context.Background(), first.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.Tokens.RefreshToken, rotated.Tokens.RefreshToken)

	_, err = f.svc.Refresh(context.Background(), first.Tokens.RefreshToken)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
	assert.Equal(t, "refresh token is expired or used", apperror.From(err).Message)

	_, err = f.svc.Refresh(context.Background(), rotated.Tokens.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_NewLoginInvalidatesPreviousToken(t *testing.T) {
	f := newFixture()
	register(t, f, annInput())

	first, err := f.svc.Login(context.Background(), LoginInput{Username: "annl", Password: "p@ss1234"})
	require.NoError(t, err)
	_, err = f.svc.Login(context.Background(), LoginInput{Username: "annl", Password: "p@ss1234"})
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), first.Tokens.RefreshToken)
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
}

func TestRefresh_AfterLogoutFails(t *testing.T) {
	f := newFixture()
	created := register(t, f, annInput())

	res, err := f.svc.Login(context.Background(), LoginInput{Username: "annl", Password: "p@ss1234"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(context.Background(), created))
	assert.Empty(t, f.repo.User(created.ID).RefreshToken)

	_, err = f.svc.Refresh(context.Background(), res.Tokens.RefreshToken)
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
}

func TestRefresh_InvalidInput(t *testing.T) {
	f := newFixture()
	created := register(t, f, annInput())

	_, err := f.svc.Refresh(context.Background(), "")
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))

	_, err = f.svc.Refresh(context.Background(), "garbage")
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))

	res, err := f.svc.Login(context.Background(), LoginInput{Username: "annl", Password: "p@ss1234"})
	require.NoError(t, err)
	_, err = f.svc.Refresh(context.Background(), res.Tokens.AccessToken)
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))

	f.repo.Delete(created.ID)
	_, err = f.svc.Refresh(context.Background(), res.Tokens.RefreshToken)
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
}

func TestChangePassword(t *testing.T) {
	f := newFixture()
	created := register(t, f, annInput())
	before := f.repo.User(created.ID).PasswordHash

	err := f.svc.ChangePassword(context.Background(), created, "wrong", "newpass123")
	assert.True(t, apperror.Is(err, apperror.KindAuth))
	assert.Equal(t, before, f.repo.User(created.ID).PasswordHash)

	require.NoError(t, f.svc.ChangePassword(context.Background(), created, "p@ss1234", "newpass123"))
	_, err = f.svc.Login(context.Background(), LoginInput{Username: "annl", Password: "newpass123"})
	assert.NoError(t, err)

	last := f.notifier.jobs[len(f.notifier.jobs)-1]
	assert.Equal(t, templates.PasswordChanged, last.Template)
}

func TestChangePassword_TooLong(t *testing.T) {
	f := newFixture()
	created := register(t, f, annInput())
	before := f.repo.User(created.ID).PasswordHash

	err := f.svc.ChangePassword(context.Background(), created, "p@ss1234", strings.Repeat("a", 73))
	require.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Equal(t, before, f.repo.User(created.ID).PasswordHash)

	err = f.svc.ChangePassword(context.Background(), created, "p@ss1234", strings.Repeat("a", 72))
	assert.NoError(t, err)
}

func TestGetCurrentUser_Passthrough(t *testing.T) {
	f := newFixture()
	created := register(t, f, annInput())
	assert.Equal(t, created, f.svc.GetCurrentUser(context.Background(), created))
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture()
	ann := register(t, f, annInput())
	other := annInput()
	other.Username, other.Email = "bob", "bob@x.com"
	register(t, f, other)

	_, err := f.svc.UpdateProfile(context.Background(), ann, "", "a@x.com")
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = f.svc.UpdateProfile(context.Background(), ann, "Ann", "BOB@x.com")
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	u, err := f.svc.UpdateProfile(context.Background(), ann, "Ann Marie", "Ann.Marie@X.com")
	require.NoError(t, err)
	assert.Equal(t, "Ann Marie", u.Fullname)
	assert.Equal(t, "ann.marie@x.com", u.Email)
	assert.Empty(t, u.PasswordHash)
}

func TestUpdateAvatarAndCover(t *testing.T) {
	f := newFixture()
	ann := register(t, f, annInput())

	_, err := f.svc.UpdateAvatar(context.Background(), ann, nil)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	_, err = f.svc.UpdateCoverImage(context.Background(), ann, nil)
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	u, err := f.svc.UpdateAvatar(context.Background(), ann, &StagedFile{Path: "tmp/new-avatar.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/tmp/new-avatar.png", u.AvatarURL)

	u, err = f.svc.UpdateCoverImage(context.Background(), ann, &StagedFile{Path: "tmp/cover.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/tmp/cover.jpg", u.CoverImageURL)
	assert.Equal(t, "https://cdn.example.com/tmp/new-avatar.png", u.AvatarURL)

	f.media.failFor["tmp/bad.png"] = true
	_, err = f.svc.UpdateCoverImage(context.Background(), ann, &StagedFile{Path: "tmp/bad.png"})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestGetChannelProfile(t *testing.T) {
	f := newFixture()
	ann := register(t, f, annInput())

	var viewer *entity.User
	for _, name := range []string{"s1", "s2", "s3"} {
		in := annInput()
		in.Username, in.Email = name, name+"@x.com"
		u := register(t, f, in)
		f.repo.Subscriptions[ann.ID] = append(f.repo.Subscriptions[ann.ID], u.ID)
		viewer = u
	}

	p, err := f.svc.GetChannelProfile(context.Background(), "annl", viewer)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.SubscribersCount)
	assert.True(t, p.IsSubscribed)
	assert.Zero(t, p.ChannelsSubscribedToCount)

	p, err = f.svc.GetChannelProfile(context.Background(), "AnnL", nil)
	require.NoError(t, err)
	assert.False(t, p.IsSubscribed)

	_, err = f.svc.GetChannelProfile(context.Background(), " ", nil)
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = f.svc.GetChannelProfile(context.Background(), "ghost", nil)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestGetWatchHistory(t *testing.T) {
	f := newFixture()
	ann := register(t, f, annInput())
	f.repo.History[ann.ID] = []entity.Video{{ID: "v-2"}, {ID: "v-1"}}

	videos, err := f.svc.GetWatchHistory(context.Background(), ann)
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "v-2", videos[0].ID)

	f.repo.Fail = assert.AnError
	_, err = f.svc.GetWatchHistory(context.Background(), ann)
	assert.True(t, apperror.Is(err, apperror.KindInternal))
}

func TestSearchUsers(t *testing.T) {
	f := newFixture()
	f.index.docs = []search.UserDocument{{ID: "u-1", Username: "annl"}}

	_, err := f.svc.SearchUsers(context.Background(), "", 10)
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	docs, err := f.svc.SearchUsers(context.Background(), "ann", 10)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	f.svc.Index = nil
	docs, err = f.svc.SearchUsers(context.Background(), "ann", 10)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

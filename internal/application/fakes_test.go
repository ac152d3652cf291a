package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oksasatya/go-account-service/internal/domain/entity"
	"github.com/oksasatya/go-account-service/internal/domain/repository/repositorytest"
	"github.com/oksasatya/go-account-service/internal/infrastructure/search"
	"github.com/oksasatya/go-account-service/pkg/helpers"
	"github.com/oksasatya/go-account-service/pkg/mailer"
)

type fakeUploader struct {
	mu      sync.Mutex
	paths   []string
	failFor map[string]bool
}

func (f *fakeUploader) Upload(_ context.Context, localPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, localPath)
	if f.failFor[localPath] {
		return "", errors.New("upload failed")
	}
	return "https://cdn.example.com/" + localPath, nil
}

type fakeIndex struct {
	put  []string
	docs []search.UserDocument
	err  error
}

func (f *fakeIndex) Put(_ context.Context, u *entity.User) error {
	f.put = append(f.put, u.ID)
	return f.err
}

func (f *fakeIndex) Search(_ context.Context, _ string, _ int) ([]search.UserDocument, error) {
	return f.docs, f.err
}

type fakeNotifier struct {
	jobs []mailer.EmailJob
	err  error
}

func (f *fakeNotifier) PublishJSON(_ context.Context, body any) error {
	if job, ok := body.(mailer.EmailJob); ok {
		f.jobs = append(f.jobs, job)
	}
	return f.err
}

type fixture struct {
	svc      *Service
	repo     *repositorytest.Memory
	media    *fakeUploader
	index    *fakeIndex
	notifier *fakeNotifier
}

func newFixture() *fixture {
	r := repositorytest.NewMemory()
	jwt := helpers.NewJWTManager("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
	f := &fixture{
		repo:     r,
		media:    &fakeUploader{failFor: map[string]bool{}},
		index:    &fakeIndex{},
		notifier: &fakeNotifier{},
	}
	f.svc = NewService(r, NewTokenService(r, jwt, nil), f.media, nil)
	f.svc.Index = f.index
	f.svc.Notifier = f.notifier
	f.svc.AppName = "accounts"
	return f
}

func annInput() RegisterInput {
	return RegisterInput{
		Fullname: "Ann Lee",
		Username: "AnnL",
		Email:    "ann@x.com",
		Password: "p@ss1234",
		Avatar:   &StagedFile{Path: "tmp/avatar.png", Filename: "avatar.png"},
	}
}

package repository

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"github.com/adamlounds/diacates-go/models"
	slogctx "github.com/veqryn/slog-context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

const subjectsFile = "auth/subjects.json"

type storedSubject struct {
	CreatedTime  time.Time `json:"createdAt"`
	UpdatedTime  time.Time `json:"updatedAt"`
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"passwordHash"`
	RoleNames    []string  `json:"roles"`
}

type subjectStore struct {
	subjects     []storedSubject
	subjectsLock sync.Mutex
}

// BucketAuthRepository keeps every auth subject in a single bucket object.
type BucketAuthRepository struct {
	BucketStore BucketStoreInterface
	memStore    *subjectStore
}

func NewBucketAuthRepository(bs BucketStoreInterface) *BucketAuthRepository {
	return &BucketAuthRepository{BucketStore: bs, memStore: &subjectStore{}}
}

// Boot loads subjects from the bucket. A missing file means no subjects yet.
func (p BucketAuthRepository) Boot(ctx context.Context) error {
	log := slogctx.FromCtx(ctx)
	r, err := p.BucketStore.Get(ctx, subjectsFile)
	if err != nil {
		if p.BucketStore.IsObjNotFoundErr(err) {
			log.Debug("boot: no auth subjects stored yet")
			return nil
		}
		return fmt.Errorf("cannot fetch %s: %w", subjectsFile, err)
	}
	defer r.Close()

	var subjects []storedSubject
	err = json.NewDecoder(r).Decode(&subjects)
	if err != nil {
		return fmt.Errorf("cannot decode %s: %w", subjectsFile, err)
	}

	p.memStore.subjectsLock.Lock()
	defer p.memStore.subjectsLock.Unlock()
	p.memStore.subjects = subjects
	log.Info("boot: auth subjects loaded", slog.Int("numSubjects", len(subjects)))
	return nil
}

func (p BucketAuthRepository) find(match func(storedSubject) bool) (*models.AuthSubject, error) {
	p.memStore.subjectsLock.Lock()
	defer p.memStore.subjectsLock.Unlock()
	for _, s := range p.memStore.subjects {
		if match(s) {
			return s.toModel(), nil
		}
	}
	return nil, models.ErrNotFound
}

func (p BucketAuthRepository) FetchAuthSubjectByID(ctx context.Context, id string) (*models.AuthSubject, error) {
	return p.find(func(s storedSubject) bool { return s.ID == id })
}

func (p BucketAuthRepository) FetchAuthSubjectByName(ctx context.Context, name string) (*models.AuthSubject, error) {
	return p.find(func(s storedSubject) bool { return s.Name == name })
}

func (p BucketAuthRepository) FetchAuthSubjects(ctx context.Context) ([]models.AuthSubject, error) {
	p.memStore.subjectsLock.Lock()
	defer p.memStore.subjectsLock.Unlock()
	subjects := make([]models.AuthSubject, 0, len(p.memStore.subjects))
	for _, s := range p.memStore.subjects {
		subjects = append(subjects, *s.toModel())
	}
	slices.SortFunc(subjects, func(a, b models.AuthSubject) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return subjects, nil
}

func (p BucketAuthRepository) CreateAuthSubject(ctx context.Context, subject models.AuthSubject) (*models.AuthSubject, error) {
	p.memStore.subjectsLock.Lock()
	defer p.memStore.subjectsLock.Unlock()

	for _, s := range p.memStore.subjects {
		if s.Name == subject.Name {
			return nil, models.ErrSubjectExists
		}
	}

	stored := storedSubject{
		ID:           subject.ID,
		Name:         subject.Name,
		PasswordHash: subject.PasswordHash,
		RoleNames:    slices.Clone(subject.RoleNames),
		CreatedTime:  subject.CreatedTime,
		UpdatedTime:  subject.UpdatedTime,
	}
	next := append(slices.Clone(p.memStore.subjects), stored)

	b, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("cannot marshal auth subjects: %w", err)
	}
	err = p.BucketStore.Upload(ctx, subjectsFile, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("cannot upload %s: %w", subjectsFile, err)
	}
	p.memStore.subjects = next
	return stored.toModel(), nil
}

func (s storedSubject) toModel() *models.AuthSubject {
	roleNames := slices.Clone(s.RoleNames)
	if roleNames == nil {
		roleNames = []string{}
	}
	return &models.AuthSubject{
		ID:           s.ID,
		Name:         s.Name,
		PasswordHash: s.PasswordHash,
		RoleNames:    roleNames,
		CreatedTime:  s.CreatedTime,
		UpdatedTime:  s.UpdatedTime,
	}
}

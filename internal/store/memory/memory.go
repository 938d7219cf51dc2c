// Package memory implementa los repositorios in-process.
//
// Es el adapter de desarrollo/testing: misma semántica que pg (incluida
// la higiene de sesiones), sin dependencias externas. El mutex cubre cada
// operación completa, así CreateWithEviction y Rotate son atómicos igual
// que sus versiones transaccionales.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/hellojane/internal/domain/repository"
)

type Store struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*repository.Account
	clients  map[string]*repository.Client
	sessions map[uuid.UUID]*repository.RefreshSession
	seq      int // desempata CreatedAt idénticos en la eviction
}

func New() *Store {
	return &Store{
		accounts: make(map[uuid.UUID]*repository.Account),
		clients:  make(map[string]*repository.Client),
		sessions: make(map[uuid.UUID]*repository.RefreshSession),
	}
}

// Accounts, Clients y Sessions exponen el mismo Store bajo cada interfaz.
func (s *Store) Accounts() repository.AccountRepository { return (*accountRepo)(s) }
func (s *Store) Clients() repository.ClientRepository   { return (*clientRepo)(s) }
func (s *Store) Sessions() repository.SessionRepository { return (*sessionRepo)(s) }

// ───────────────────────── accounts ─────────────────────────

type accountRepo Store

func (r *accountRepo) Create(_ context.Context, in repository.CreateAccountInput) (*repository.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Username == in.Username || a.Email == in.Email {
			return nil, repository.ErrConflict
		}
	}
	role := in.Role
	if role == "" {
		role = repository.RoleUser
	}
	a := &repository.Account{
		ID:        uuid.New(),
		Email:     in.Email,
		Username:  in.Username,
		Role:      role,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if in.PasswordHash != "" {
		h := in.PasswordHash
		a.PasswordHash = &h
	}
	r.accounts[a.ID] = a
	cp := *a
	return &cp, nil
}

func (r *accountRepo) FindByUsername(_ context.Context, username string) (*repository.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Username == username {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *accountRepo) FindByID(_ context.Context, id uuid.UUID) (*repository.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

// SetActive es un helper de tests/seed (no forma parte de la interfaz).
func (s *Store) SetActive(id uuid.UUID, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		a.IsActive = active
	}
}

// DeleteAccount es un helper de tests (cuenta que desaparece con sesión viva).
func (s *Store) DeleteAccount(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, id)
}

// ───────────────────────── clients ─────────────────────────

type clientRepo Store

func (r *clientRepo) Create(_ context.Context, in repository.CreateClientInput) (*repository.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[in.ClientID]; ok {
		return nil, repository.ErrConflict
	}
	mode := in.Mode
	if mode == "" {
		mode = repository.ClientModeDev
	}
	c := &repository.Client{
		ID:           uuid.New(),
		ClientID:     in.ClientID,
		ClientSecret: in.ClientSecret,
		Name:         in.Name,
		RedirectURIs: append([]string(nil), in.RedirectURIs...),
		Scopes:       append([]string(nil), in.Scopes...),
		Mode:         mode,
		CreatedAt:    time.Now().UTC(),
	}
	r.clients[c.ClientID] = c
	cp := *c
	return &cp, nil
}

func (r *clientRepo) FindByClientID(_ context.Context, clientID string) (*repository.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[clientID]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

// ───────────────────────── sessions ─────────────────────────

type sessionRepo Store

func (r *sessionRepo) insertLocked(in repository.CreateSessionInput) *repository.RefreshSession {
	r.seq++
	s := &repository.RefreshSession{
		ID:           uuid.New(),
		AccountID:    in.AccountID,
		RefreshToken: uuid.New(),
		UserAgent:    in.UserAgent,
		ClientIP:     in.ClientIP,
		Scope:        in.Scope,
		CreatedAt:    time.Now().UTC().Add(time.Duration(r.seq) * time.Nanosecond),
		ExpiresAt:    in.ExpiresAt,
	}
	r.sessions[s.ID] = s
	return s
}

func (r *sessionRepo) CreateWithEviction(_ context.Context, in repository.CreateSessionInput, maxPerAccount int) (*repository.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// 1) dedup por User-Agent
	for id, s := range r.sessions {
		if s.AccountID == in.AccountID && s.UserAgent == in.UserAgent {
			delete(r.sessions, id)
		}
	}

	// 2) cap: quedan a lo sumo maxPerAccount-1, la nueva completa el tope
	var live []*repository.RefreshSession
	for _, s := range r.sessions {
		if s.AccountID == in.AccountID {
			live = append(live, s)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].CreatedAt.After(live[j].CreatedAt) })
	for i := maxPerAccount - 1; i >= 0 && i < len(live); i++ {
		delete(r.sessions, live[i].ID)
	}

	// 3) insert
	cp := *r.insertLocked(in)
	return &cp, nil
}

func (r *sessionRepo) GetByToken(_ context.Context, token uuid.UUID) (*repository.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.RefreshToken == token {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *sessionRepo) Rotate(_ context.Context, oldID uuid.UUID, in repository.CreateSessionInput) (*repository.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, oldID)
	cp := *r.insertLocked(in)
	return &cp, nil
}

func (r *sessionRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *sessionRepo) ListByAccount(_ context.Context, accountID uuid.UUID) ([]repository.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.RefreshSession
	for _, s := range r.sessions {
		if s.AccountID == accountID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *sessionRepo) DeleteExpired(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	n := 0
	for id, s := range r.sessions {
		if s.ExpiresAt.Before(now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

package pfcontacts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// FileStore garde les contacts dans un tableau json réécrit à chaque ajout.
// Il sert quand aucune base relationnelle n'est configurée.
type FileStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// WithClock remplace l'horloge, utilisé par les tests
func (s *FileStore) WithClock(now func() time.Time) *FileStore {
	s.now = now
	return s
}

func (s *FileStore) Path() string {
	return s.path
}

// load lit le fichier, un fichier absent ou corrompu vaut une liste vide
func (s *FileStore) load() []Contact {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.path).Msg("lecture du fichier contacts impossible")
		}
		return []Contact{}
	}

	var contacts []Contact
	if err := json.Unmarshal(data, &contacts); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("fichier contacts corrompu, ignoré")
		return []Contact{}
	}
	return contacts
}

func (s *FileStore) Create(ctx context.Context, c *Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contacts := s.load()

	var maxID uint
	for _, existing := range contacts {
		if existing.ID > maxID {
			maxID = existing.ID
		}
	}
	c.ID = maxID + 1
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	contacts = append(contacts, *c)

	if err := s.write(contacts); err != nil {
		c.ID = 0
		return err
	}
	return nil
}

// write remplace le fichier en entier via un fichier temporaire
func (s *FileStore) write(contacts []Contact) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("error creating contacts directory: %w", err)
	}

	data, err := json.MarshalIndent(contacts, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding contacts: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("error writing contacts: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("error replacing contacts file: %w", err)
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]Contact, error) {
	s.mu.Lock()
	contacts := s.load()
	s.mu.Unlock()

	sort.SliceStable(contacts, func(i, j int) bool {
		if contacts[i].CreatedAt.Equal(contacts[j].CreatedAt) {
			return contacts[i].ID > contacts[j].ID
		}
		return contacts[i].CreatedAt.After(contacts[j].CreatedAt)
	})
	return contacts, nil
}

func (s *FileStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	contacts := s.load()
	s.mu.Unlock()

	week, day := windows(s.now().UTC())
	stats := Stats{TotalSubmissions: int64(len(contacts))}
	for _, c := range contacts {
		if !c.CreatedAt.Before(week) {
			stats.ThisWeek++
		}
		if !c.CreatedAt.Before(day) {
			stats.Today++
		}
	}
	return stats, nil
}

package app

import (
	"context"
	"sync"

	"github.com/drosenbaum/shiurcast/internal/domain"
	"github.com/drosenbaum/shiurcast/internal/ports"
	"github.com/rs/zerolog"
)

// SeenService tient l'ensemble borné des épisodes déjà signalés et calcule
// les nouveautés des flux suivis.
type SeenService struct {
	logger zerolog.Logger
	repo   ports.SeenRepository

	mu           sync.Mutex
	bootstrapped bool // une fois par process, indépendant de l'état persisté
}

func NewSeenService(logger zerolog.Logger, repo ports.SeenRepository) *SeenService {
	return &SeenService{logger: logger, repo: repo}
}

// Bootstrap marque tout le catalogue comme vu quand le seen set est vide:
// une première installation ne doit pas notifier l'intégralité du back
// catalog. Idempotent pour la durée de vie du process.
func (s *SeenService) Bootstrap(ctx context.Context, episodes []domain.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bootstrapped {
		return nil
	}
	if len(episodes) == 0 {
		// Rien de chargé: on réessaiera au prochain passage.
		return nil
	}

	count, err := s.repo.Count(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		ids := make([]string, 0, len(episodes))
		for _, ep := range episodes {
			ids = append(ids, ep.ID)
		}
		if err := s.repo.MarkSeen(ctx, ids); err != nil {
			return err
		}
		s.logger.Info().Int("episodes", len(ids)).Msg("seen set bootstrapped")
	}
	s.bootstrapped = true
	return nil
}

// CheckForNew filtre les épisodes des flux suivis absents du seen set, et
// les marque vus dans la foulée: "vu" signifie "remonté une fois", pas
// "traité". Un second appel identique renvoie vide.
func (s *SeenService) CheckForNew(ctx context.Context, feeds []domain.Feed, episodes []domain.Episode) ([]domain.Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subscribed := make(map[string]struct{}, len(feeds))
	for _, f := range feeds {
		subscribed[f.ID] = struct{}{}
	}

	seen, err := s.repo.SeenSet(ctx)
	if err != nil {
		return nil, err
	}

	fresh := []domain.Episode{}
	for _, ep := range episodes {
		if _, ok := subscribed[ep.FeedID]; !ok {
			continue
		}
		if _, ok := seen[ep.ID]; ok {
			continue
		}
		fresh = append(fresh, ep)
	}
	if len(fresh) == 0 {
		return fresh, nil
	}

	// Ne marquer que ce qui est effectivement renvoyé à l'appelant.
	ids := make([]string, 0, len(fresh))
	for _, ep := range fresh {
		ids = append(ids, ep.ID)
	}
	if err := s.repo.MarkSeen(ctx, ids); err != nil {
		return nil, err
	}
	return fresh, nil
}

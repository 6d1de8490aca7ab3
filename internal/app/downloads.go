package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/drosenbaum/shiurcast/internal/domain"
	"github.com/drosenbaum/shiurcast/internal/ports"
	"github.com/rs/zerolog"
)

// RetentionWindow: délai après la première complétion au bout duquel un
// téléchargement non favori est purgé.
const RetentionWindow = 48 * time.Hour

// DownloadManager orchestre le cycle de vie des téléchargements:
// absent → downloading → downloaded → (removed | expired). Pas d'état
// "failed" persisté: un échec retombe sur absent.
type DownloadManager struct {
	logger  zerolog.Logger
	repo    ports.DownloadRepository
	catalog ports.CatalogAPI
	bus     ports.EventBus
	limiter *DynamicLimiter
	client  *http.Client

	// dir vide → pas de filesystem local: l'URL distante sert d'URI
	// "locale" (branche de capacité plateforme, pas un chemin d'erreur).
	dir string

	mu       sync.Mutex
	inFlight map[string]float64
}

func NewDownloadManager(logger zerolog.Logger, repo ports.DownloadRepository, catalog ports.CatalogAPI, bus ports.EventBus, limiter *DynamicLimiter, dir string) *DownloadManager {
	return &DownloadManager{
		logger:   logger,
		repo:     repo,
		catalog:  catalog,
		bus:      bus,
		limiter:  limiter,
		client:   &http.Client{},
		dir:      dir,
		inFlight: map[string]float64{},
	}
}

// Download transfère un épisode. Une seule opération en vol par épisode:
// une seconde demande concurrente est rejetée (ErrConflict), jamais exécutée
// deux fois contre le même fichier destination. Un succès écrase tout
// enregistrement antérieur du même épisode.
func (m *DownloadManager) Download(ctx context.Context, ep domain.Episode, feed domain.Feed) (domain.DownloadRecord, error) {
	if ep.ID == "" || ep.AudioURL == "" {
		return domain.DownloadRecord{}, Coded(KindInvalid, "episode has no audio", nil)
	}
	if !m.begin(ep.ID) {
		return domain.DownloadRecord{}, Coded(KindConflict, "download already in flight", ports.ErrConflict)
	}
	defer m.finish(ep.ID)

	localURI := ep.AudioURL
	if m.dir != "" {
		path, err := m.transfer(ctx, ep, feed)
		if err != nil {
			m.logger.Warn().Err(err).Str("episode_id", ep.ID).Msg("download failed")
			return domain.DownloadRecord{}, err
		}
		localURI = path
	}

	rec := domain.DownloadRecord{
		EpisodeID:    ep.ID,
		FeedID:       feed.ID,
		Title:        ep.Title,
		AudioURL:     ep.AudioURL,
		Duration:     ep.Duration,
		LocalURI:     localURI,
		DownloadedAt: time.Now().UTC(),
		FeedTitle:    feed.Title,
		FeedImageURL: feed.ImageURL,
	}
	stored, err := m.repo.Put(ctx, rec)
	if err != nil {
		return domain.DownloadRecord{}, Coded(KindStorage, "persist download record", err)
	}
	m.publish("download.completed", stored)
	return stored, nil
}

// transfer streame vers <dir>/<feed>/<episode>.mp3 via un fichier .part
// renommé en fin de course: jamais de fichier final partiel.
func (m *DownloadManager) transfer(ctx context.Context, ep domain.Episode, feed domain.Feed) (string, error) {
	destDir := filepath.Join(m.dir, sanitizeSegment(feed.ID))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", Coded(KindIO, "create feed directory", err)
	}
	dest := filepath.Join(destDir, sanitizeSegment(ep.ID)+".mp3")
	tmp := dest + ".part"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.AudioURL, nil)
	if err != nil {
		return "", Coded(KindInvalid, "bad audio url", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return "", Coded(KindNetwork, "fetch audio", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", Coded(KindNetwork, fmt.Sprintf("fetch audio: status %d", resp.StatusCode), nil)
	}

	f, err := os.Create(tmp)
	if err != nil {
		return "", Coded(KindIO, "create temp file", err)
	}

	total := resp.ContentLength
	var written int64
	buf := make([]byte, 64*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				_ = f.Close()
				_ = os.Remove(tmp)
				return "", Coded(KindIO, "write temp file", werr)
			}
			written += int64(n)
			if total > 0 {
				// Sans Content-Length le progrès reste best-effort/absent.
				m.setProgress(ep.ID, float64(written)/float64(total))
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
			return "", Coded(KindNetwork, "read audio stream", rerr)
		}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", Coded(KindIO, "close temp file", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return "", Coded(KindIO, "finalize download", err)
	}
	m.setProgress(ep.ID, 1)
	return dest, nil
}

func (m *DownloadManager) begin(episodeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inFlight[episodeID]; ok {
		return false
	}
	m.inFlight[episodeID] = 0
	return true
}

// finish retire l'entrée de progrès quel que soit le dénouement.
func (m *DownloadManager) finish(episodeID string) {
	m.mu.Lock()
	delete(m.inFlight, episodeID)
	m.mu.Unlock()
}

func (m *DownloadManager) setProgress(episodeID string, fraction float64) {
	m.mu.Lock()
	prev, ok := m.inFlight[episodeID]
	if ok {
		m.inFlight[episodeID] = fraction
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	// Un event par tranche de 5%, pas par chunk.
	if int(fraction*20) != int(prev*20) || fraction >= 1 {
		b, _ := json.Marshal(map[string]any{"episodeId": episodeID, "progress": fraction})
		if m.bus != nil {
			m.bus.Publish("download.progress", b)
		}
	}
}

// Progress renvoie la fraction en vol, (0,false) hors transfert.
func (m *DownloadManager) Progress(episodeID string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.inFlight[episodeID]
	return f, ok
}

func (m *DownloadManager) AllProgress() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(m.inFlight))
	for id, f := range m.inFlight {
		out[id] = f
	}
	return out
}

func (m *DownloadManager) List(ctx context.Context) ([]domain.DownloadRecord, error) {
	return m.repo.List(ctx)
}

func (m *DownloadManager) Get(ctx context.Context, episodeID string) (domain.DownloadRecord, error) {
	return m.repo.Get(ctx, episodeID)
}

// Remove supprime fichier et enregistrement. Toujours un succès du point de
// vue appelant: fichier manquant ignoré, erreur de suppression loggée.
func (m *DownloadManager) Remove(ctx context.Context, episodeID string) error {
	rec, err := m.repo.Get(ctx, episodeID)
	if err == nil && isLocalPath(rec.LocalURI) {
		if rmErr := os.Remove(rec.LocalURI); rmErr != nil && !os.IsNotExist(rmErr) {
			m.logger.Warn().Err(rmErr).Str("episode_id", episodeID).Msg("delete download file failed")
		}
	}
	if err := m.repo.Delete(ctx, episodeID); err != nil {
		m.logger.Warn().Err(err).Str("episode_id", episodeID).Msg("delete download record failed")
	}
	if err := m.repo.DeleteCompletion(ctx, episodeID); err != nil {
		m.logger.Warn().Err(err).Str("episode_id", episodeID).Msg("delete completion stamp failed")
	}
	if m.bus != nil {
		b, _ := json.Marshal(map[string]string{"episodeId": episodeID})
		m.bus.Publish("download.removed", b)
	}
	return nil
}

// MarkCompleted pose l'horodatage de complétion qui arme la fenêtre de
// rétention. Premier horodatage gagnant (idempotent).
func (m *DownloadManager) MarkCompleted(ctx context.Context, episodeID string) error {
	return m.repo.MarkCompleted(ctx, episodeID, time.Now().UTC())
}

// CleanupExpired purge les complétions plus vieilles que la fenêtre de
// rétention, sauf favoris, et retire les enregistrements orphelins dont le
// fichier local a disparu. Pull-based: appelé par l'orchestrateur.
func (m *DownloadManager) CleanupExpired(ctx context.Context, favorites map[string]struct{}) (int, error) {
	comps, err := m.repo.Completions(ctx)
	if err != nil {
		return 0, Coded(KindStorage, "load completion stamps", err)
	}

	removed := 0
	now := time.Now().UTC()
	for episodeID, at := range comps {
		if now.Sub(at) < RetentionWindow {
			continue
		}
		if _, fav := favorites[episodeID]; fav {
			continue
		}
		if err := m.Remove(ctx, episodeID); err != nil {
			continue
		}
		removed++
		m.logger.Info().Str("episode_id", episodeID).Msg("expired download purged")
	}

	// Orphelins: enregistrement présent, fichier absent.
	recs, err := m.repo.List(ctx)
	if err != nil {
		return removed, nil
	}
	for _, rec := range recs {
		if !isLocalPath(rec.LocalURI) {
			continue
		}
		if _, statErr := os.Stat(rec.LocalURI); os.IsNotExist(statErr) {
			_ = m.Remove(ctx, rec.EpisodeID)
			removed++
		}
	}
	return removed, nil
}

// BatchResult agrège un lot de téléchargements: les échecs sont isolés par
// épisode et n'interrompent pas le reste.
type BatchResult struct {
	Attempted int              `json:"attempted"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Errors    map[string]error `json:"-"`
}

type autoDownloadTask struct {
	episode domain.Episode
	feed    domain.Feed
}

// AutoDownload télécharge les nouveautés par flux dans la limite du quota
// (override par flux ou défaut), en écartant l'existant et les épisodes sans
// audio, avec concurrence bornée par le limiter.
func (m *DownloadManager) AutoDownload(ctx context.Context, feeds []domain.Feed, settings domain.Settings) BatchResult {
	tasks := []autoDownloadTask{}

	for _, feed := range feeds {
		if !settings.AutoDownloadFor(feed.ID) {
			continue
		}
		max := settings.MaxEpisodesFor(feed.ID)
		existing, err := m.repo.CountByFeed(ctx, feed.ID)
		if err != nil {
			m.logger.Warn().Err(err).Str("feed_id", feed.ID).Msg("count downloads failed")
			continue
		}
		remaining := max - existing
		if remaining <= 0 {
			continue
		}

		episodes, err := m.catalog.FeedEpisodes(ctx, feed.ID)
		if err != nil {
			m.logger.Warn().Err(err).Str("feed_id", feed.ID).Msg("fetch feed episodes failed")
			continue
		}
		for _, ep := range episodes {
			if remaining <= 0 {
				break
			}
			if ep.AudioURL == "" {
				continue
			}
			if _, err := m.repo.Get(ctx, ep.ID); err == nil {
				continue
			}
			if _, busy := m.Progress(ep.ID); busy {
				continue
			}
			tasks = append(tasks, autoDownloadTask{episode: ep, feed: feed})
			remaining--
		}
	}

	result := BatchResult{Attempted: len(tasks), Errors: map[string]error{}}
	if len(tasks) == 0 {
		return result
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, task := range tasks {
		task := task
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.limiter.Acquire(ctx); err != nil {
				mu.Lock()
				result.Failed++
				result.Errors[task.episode.ID] = err
				mu.Unlock()
				return
			}
			defer m.limiter.Release()

			_, err := m.Download(ctx, task.episode, task.feed)
			mu.Lock()
			if err != nil {
				result.Failed++
				result.Errors[task.episode.ID] = err
			} else {
				result.Succeeded++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if result.Failed > 0 {
		m.logger.Warn().Int("failed", result.Failed).Int("succeeded", result.Succeeded).Msg("auto-download batch finished with failures")
	} else if result.Succeeded > 0 {
		m.logger.Info().Int("succeeded", result.Succeeded).Msg("auto-download batch finished")
	}
	return result
}

func (m *DownloadManager) publish(topic string, rec domain.DownloadRecord) {
	if m.bus == nil {
		return
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	m.bus.Publish(topic, b)
}

func isLocalPath(uri string) bool {
	return uri != "" && !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://")
}

func sanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, "\x00", "")
	if s == "" {
		return "unknown"
	}
	return s
}

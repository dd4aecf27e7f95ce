package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mileusna/crontab"

	"fanwiki/internal/config"
	"fanwiki/internal/logger"
	"fanwiki/internal/metrics"
	"fanwiki/internal/models"
	"fanwiki/internal/repository"
	"fanwiki/internal/storage"
)

const (
	BackupSchedule = "0 */12 * * *"
	ReapSchedule   = "0 * * * *"

	jobTimeout      = 10 * time.Minute
	processingGrace = 10 * time.Minute
)

// Dumper writes a full SQL dump of the database to path.
type Dumper interface {
	Dump(ctx context.Context, path string) error
}

type pgDump struct {
	binary string
	db     config.DB
}

func NewPgDump(cfg *config.Config) Dumper {
	return &pgDump{binary: cfg.PgDumpPath, db: cfg.DB}
}

func (d *pgDump) Dump(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, d.binary,
		"--host", d.db.Host,
		"--port", d.db.Port,
		"--username", d.db.User,
		"--dbname", d.db.Name,
		"--no-password",
		"--file", path,
	)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+d.db.Password)

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", d.binary, err, out)
	}
	return nil
}

type Scheduler struct {
	ctab       *crontab.Crontab
	posts      repository.PostRepository
	users      repository.UserRepository
	storage    storage.Storage
	dumper     Dumper
	tempMaxAge time.Duration
	now        func() time.Time
}

func New(rep *repository.Repository, store storage.Storage, dumper Dumper, cfg *config.Config) *Scheduler {
	return &Scheduler{
		ctab:       crontab.New(),
		posts:      rep.Post,
		users:      rep.User,
		storage:    store,
		dumper:     dumper,
		tempMaxAge: cfg.S3.PresignTTL + cfg.S3.TempReapGrace,
		now:        time.Now,
	}
}

// Start registers the periodic jobs. Jobs run on the crontab's own goroutines.
func (s *Scheduler) Start() error {
	if err := s.ctab.AddJob(BackupSchedule, s.run("backup_db", s.Backup)); err != nil {
		return fmt.Errorf("schedule backup: %w", err)
	}
	if err := s.ctab.AddJob(ReapSchedule, s.run("reap_temp_entries", s.Reap)); err != nil {
		return fmt.Errorf("schedule reaper: %w", err)
	}
	clog := logger.Component("scheduler")
	clog.Info().
		Str("backup", BackupSchedule).
		Str("reap", ReapSchedule).
		Msg("jobs scheduled")
	return nil
}

// Shutdown stops future runs and takes one last backup.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.ctab.Shutdown()
	err := s.Backup(ctx)
	metrics.JobRunsTotal.WithLabelValues("backup_db", metrics.Result(err)).Inc()
	return err
}

func (s *Scheduler) run(name string, job func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		started := s.now()
		err := job(ctx)
		metrics.JobRunsTotal.WithLabelValues(name, metrics.Result(err)).Inc()

		log := logger.Component("scheduler")
		if err != nil {
			log.Error().Err(err).Str("job", name).Msg("job failed")
			return
		}
		log.Debug().Str("job", name).Dur("took", s.now().Sub(started)).Msg("job finished")
	}
}

// Backup dumps the database into the backup bucket as backup_<RFC3339>.sql.
func (s *Scheduler) Backup(ctx context.Context) error {
	log := logger.Component("sql backup")

	path := filepath.Join(os.TempDir(), "fanwiki-"+uuid.NewString()+".sql")
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("could not remove local dump")
		}
	}()

	if err := s.dumper.Dump(ctx, path); err != nil {
		return fmt.Errorf("dump database: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read dump: %w", err)
	}

	key := "backup_" + s.now().UTC().Format(time.RFC3339) + ".sql"
	if err := s.storage.Put(ctx, storage.BucketBackup, key, data, "application/sql"); err != nil {
		return fmt.Errorf("upload dump: %w", err)
	}

	log.Info().Str("key", key).Str("size", humanize.Bytes(uint64(len(data)))).Msg("database backed up")
	return nil
}

// Reap removes abandoned temp objects, Processing posts that never finished,
// edits that never finished, and expired sessions. Every step runs even when
// an earlier one fails.
func (s *Scheduler) Reap(ctx context.Context) error {
	log := logger.Component("reaper")
	var errs []error

	temp, err := s.storage.ListOlderThan(ctx, storage.BucketPublic, storage.TempPrefix, s.tempMaxAge)
	if err != nil {
		errs = append(errs, fmt.Errorf("list temp objects: %w", err))
	}
	if len(temp) > 0 {
		if err := s.storage.DeleteMany(ctx, storage.BucketPublic, temp); err != nil {
			errs = append(errs, fmt.Errorf("delete temp objects: %w", err))
		} else {
			metrics.ReapedTotal.WithLabelValues("temp_object").Add(float64(len(temp)))
			log.Info().Int("count", len(temp)).
				Str("older_than", humanize.RelTime(s.now().Add(-s.tempMaxAge), s.now(), "ago", "")).
				Msg("deleted temp objects")
		}
	}

	stale, err := s.posts.DeleteStaleProcessing(ctx, processingGrace)
	if err != nil {
		errs = append(errs, fmt.Errorf("delete stale posts: %w", err))
	}
	for _, ref := range stale {
		folder := models.FolderFor(ref.Kind, ref.ID)
		keys, err := s.storage.ListOlderThan(ctx, storage.BucketPublic, folder, 0)
		if err != nil {
			errs = append(errs, fmt.Errorf("list %s: %w", folder, err))
			continue
		}
		if err := s.storage.DeleteMany(ctx, storage.BucketPublic, keys); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", folder, err))
		}
	}
	if len(stale) > 0 {
		metrics.ReapedTotal.WithLabelValues("processing_post").Add(float64(len(stale)))
		log.Info().Int("count", len(stale)).Msg("deleted posts stuck in processing")
	}

	restored, err := s.posts.RestoreStaleEdits(ctx, processingGrace)
	if err != nil {
		errs = append(errs, fmt.Errorf("restore stale edits: %w", err))
	}
	if restored > 0 {
		metrics.ReapedTotal.WithLabelValues("stale_edit").Add(float64(restored))
		log.Info().Int64("count", restored).Msg("reopened posts stuck in editing")
	}

	sessions, err := s.users.DeleteExpiredSessions(ctx, models.SessionTTL)
	if err != nil {
		errs = append(errs, fmt.Errorf("delete expired sessions: %w", err))
	}
	if sessions > 0 {
		metrics.ReapedTotal.WithLabelValues("session").Add(float64(sessions))
		log.Debug().Int64("count", sessions).Msg("deleted expired sessions")
	}

	return errors.Join(errs...)
}

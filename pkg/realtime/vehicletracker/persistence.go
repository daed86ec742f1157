package vehicletracker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/travigo/fleettracker/pkg/ctdf"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SessionWriter is satisfied by *mongo.Collection
type SessionWriter interface {
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
}

// Persister periodically writes changed sessions to the database
type Persister struct {
	tracker *Tracker
	writer  SessionWriter
	cache   *SessionStateCache
}

// NewPersister creates a persister, cache may be nil in which case every dirty session is written
func NewPersister(tracker *Tracker, writer SessionWriter, cache *SessionStateCache) *Persister {
	return &Persister{
		tracker: tracker,
		writer:  writer,
		cache:   cache,
	}
}

type pendingWrite struct {
	entry   *sessionEntry
	session *ctdf.TrackingSession
	reason  string
}

func (p *Persister) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tracker.config.PersistInterval)
	defer ticker.Stop()

	log.Info().Str("interval", p.tracker.config.PersistInterval.String()).Msg("Starting session persister")

	for {
		select {
		case <-ctx.Done():
			// final flush bypasses change detection so a clean shutdown loses nothing
			flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			p.FlushAll(flushCtx)
			cancel()
			return
		case <-ticker.C:
			p.Flush(ctx)
			p.Evict()
		}
	}
}

// Flush writes every session with significant unwritten changes and returns how many were written
func (p *Persister) Flush(ctx context.Context) int {
	return p.flush(ctx, false)
}

// FlushAll writes every dirty session regardless of change detection
func (p *Persister) FlushAll(ctx context.Context) int {
	return p.flush(ctx, true)
}

func (p *Persister) flush(ctx context.Context, force bool) int {
	now := p.tracker.now()

	writesPool := pool.NewWithResults[*pendingWrite]().WithMaxGoroutines(p.tracker.config.SweepConcurrency)

	for _, entry := range p.tracker.store.Entries() {
		if !entry.dirty.Load() {
			continue
		}

		entry := entry
		writesPool.Go(func() *pendingWrite {
			return p.prepare(ctx, entry, now, force)
		})
	}

	var writes []*pendingWrite
	var models []mongo.WriteModel
	for _, write := range writesPool.Wait() {
		if write == nil {
			continue
		}

		writes = append(writes, write)
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"primaryidentifier": write.session.PrimaryIdentifier}).
			SetUpdate(bson.M{"$set": write.session}).
			SetUpsert(true),
		)
	}

	if len(models) == 0 {
		return 0
	}

	startTime := time.Now()
	_, err := p.writer.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		log.Error().Err(err).Int("length", len(models)).Msg("Failed to bulk write tracking sessions")

		for _, write := range writes {
			write.entry.dirty.Store(true)
		}
		return 0
	}

	for _, write := range writes {
		persistWritesTotal.WithLabelValues(write.reason).Inc()

		if p.cache != nil {
			if err := p.cache.Set(ctx, newCachedSessionState(write.session, now)); err != nil {
				log.Error().Err(err).Str("session", write.session.PrimaryIdentifier).Msg("Failed to update session state cache")
			}
		}
	}

	log.Debug().Int("length", len(models)).Str("time", time.Since(startTime).String()).Msg("Bulk write tracking sessions")

	return len(models)
}

// prepare snapshots one session and clears its dirty flag. Unless forced, the flag is set
// again if the changes are not yet significant enough to write.
func (p *Persister) prepare(ctx context.Context, entry *sessionEntry, now time.Time, force bool) *pendingWrite {
	entry.mu.Lock()
	session := entry.session.Clone()
	entry.dirty.Store(false)
	entry.mu.Unlock()

	reason := "dirty"
	if session.Status.IsTerminal() {
		reason = "session_ended"
	} else if force {
		reason = "forced"
	} else if p.cache != nil {
		cached, err := p.cache.Get(ctx, session.PrimaryIdentifier)
		if err != nil {
			log.Error().Err(err).Str("session", session.PrimaryIdentifier).Msg("Failed to read session state cache")
		}

		var significant bool
		significant, reason = cached.ShouldPersist(session, now, p.tracker.config.ChangeDetection)
		if !significant {
			entry.dirty.Store(true)
			return nil
		}
	}

	return &pendingWrite{
		entry:   entry,
		session: session,
		reason:  reason,
	}
}

// Evict drops ended sessions from memory once they have been written and retained long enough
func (p *Persister) Evict() int {
	cutoff := p.tracker.now().Add(-p.tracker.config.TerminalRetention)

	evicted := p.tracker.store.EvictTerminal(cutoff, true)
	if evicted > 0 {
		log.Info().Int("evicted", evicted).Msg("Evicted ended tracking sessions")
	}

	return evicted
}

// LoadLiveSessions reads every session that had not ended when it was last written
func LoadLiveSessions(ctx context.Context, collection *mongo.Collection) ([]*ctdf.TrackingSession, error) {
	cursor, err := collection.Find(ctx, bson.M{
		"status": bson.M{"$in": bson.A{
			ctdf.TrackingSessionStatusActive,
			ctdf.TrackingSessionStatusPaused,
			ctdf.TrackingSessionStatusEmergency,
		}},
	})
	if err != nil {
		return nil, err
	}

	var sessions []*ctdf.TrackingSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}

	return sessions, nil
}

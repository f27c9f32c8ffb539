// Package firestore is the production Job Store Adapter backend: Cloud
// Firestore, grounded in original_source/whisper_queue/app/main.py and
// original_source/backend/app/services/{whisper_queue,batch_control}.py,
// which run the same claim-inside-a-transaction algorithm against the
// Python Firestore client this package mirrors in Go.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"whisperqueue/internal/domain"
	"whisperqueue/internal/store"
)

// FirestoreStore adapts a *firestore.Client + collection name to
// store.Store.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// New wraps an already-constructed Firestore client. The collection
// name is WHISPER_JOBS_COLLECTION per spec §6.
func New(client *firestore.Client, collection string) *FirestoreStore {
	return &FirestoreStore{client: client, collection: collection}
}

func (s *FirestoreStore) col() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

func (s *FirestoreStore) Get(ctx context.Context, jobID string) (domain.Job, error) {
	snap, err := s.col().Doc(jobID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return domain.Job{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Job{}, err
	}
	return docToJob(snap)
}

func (s *FirestoreStore) Update(ctx context.Context, jobID string, patch domain.Patch) error {
	_, err := s.col().Doc(jobID).Update(ctx, patchToUpdates(patch))
	if status.Code(err) == codes.NotFound {
		return store.ErrNotFound
	}
	return err
}

// CountByStatus uses Firestore's native aggregate count query, which
// runs server-side rather than streaming every matching document.
func (s *FirestoreStore) CountByStatus(ctx context.Context, st domain.Status) (int, error) {
	q := s.col().Where("status", "==", string(st))
	res, err := q.NewAggregationQuery().WithCount("count").Get(ctx)
	if err != nil {
		return 0, err
	}
	return extractCount(res)
}

func (s *FirestoreStore) ListByStatus(ctx context.Context, st domain.Status, order store.ListOrder, limit int) ([]domain.Job, error) {
	q := s.col().Where("status", "==", string(st)).OrderBy("created_at", firestore.Asc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return drainJobs(q.Documents(ctx))
}

// RunTransaction executes fn inside a Firestore transaction. Firestore
// retries aborted (contention) transactions internally up to its
// default bound, satisfying the "bounded retries" requirement of spec
// §4.2/§7 without this adapter reimplementing backoff.
func (s *FirestoreStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, ftx *firestore.Transaction) error {
		return fn(ctx, &firestoreTx{col: s.col(), tx: ftx})
	})
}

type firestoreTx struct {
	col *firestore.CollectionRef
	tx  *firestore.Transaction
}

func (t *firestoreTx) Get(ctx context.Context, jobID string) (domain.Job, error) {
	snap, err := t.tx.Get(t.col.Doc(jobID))
	if status.Code(err) == codes.NotFound {
		return domain.Job{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Job{}, err
	}
	return docToJob(snap)
}

func (t *firestoreTx) Update(ctx context.Context, jobID string, patch domain.Patch) error {
	return t.tx.Update(t.col.Doc(jobID), patchToUpdates(patch))
}

// CountByStatus counts documents inside the transaction. The Go
// Firestore transaction handle does not expose the server-side
// aggregate query used by the non-transactional path above, so this
// streams the matching documents through the transaction snapshot
// instead (spec §4.6 "Edge policy": p stays ≤ N_max+1 in practice, so
// the O(p) scan is cheap) — the read is still taken against the same
// transaction snapshot as the claiming write that follows it, which is
// what preserves invariant I2, not the counting strategy itself.
func (t *firestoreTx) CountByStatus(ctx context.Context, st domain.Status) (int, error) {
	q := t.col.Where("status", "==", string(st))
	docs, err := t.tx.Documents(q).GetAll()
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (t *firestoreTx) ListByStatus(ctx context.Context, st domain.Status, order store.ListOrder, limit int) ([]domain.Job, error) {
	q := t.col.Where("status", "==", string(st)).OrderBy("created_at", firestore.Asc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	docs, err := t.tx.Documents(q).GetAll()
	if err != nil {
		return nil, err
	}
	jobs := make([]domain.Job, 0, len(docs))
	for _, d := range docs {
		j, err := docToJob(d)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func docToJob(snap *firestore.DocumentSnapshot) (domain.Job, error) {
	var j domain.Job
	if err := snap.DataTo(&j); err != nil {
		return domain.Job{}, fmt.Errorf("firestore: decode job %s: %w", snap.Ref.ID, err)
	}
	j.JobID = snap.Ref.ID
	return j, nil
}

func patchToUpdates(patch domain.Patch) []firestore.Update {
	var updates []firestore.Update
	touched := false

	if patch.Status != nil {
		updates = append(updates, firestore.Update{Path: "status", Value: string(*patch.Status)})
		touched = true
	}
	if patch.ErrorMessage != nil {
		updates = append(updates, firestore.Update{Path: "error_message", Value: *patch.ErrorMessage})
	}
	if patch.BatchHandle != nil {
		updates = append(updates, firestore.Update{Path: "batch_handle", Value: *patch.BatchHandle})
	}
	if patch.ProcessStartedAt {
		updates = append(updates, firestore.Update{Path: "process_started_at", Value: firestore.ServerTimestamp})
		touched = true
	}
	if patch.ProcessEndedAt {
		updates = append(updates, firestore.Update{Path: "process_ended_at", Value: firestore.ServerTimestamp})
		touched = true
	}
	if patch.TouchUpdatedAt || touched {
		updates = append(updates, firestore.Update{Path: "updated_at", Value: firestore.ServerTimestamp})
	}
	return updates
}

func extractCount(res firestore.AggregationResult) (int, error) {
	v, ok := res["count"]
	if !ok {
		return 0, nil
	}
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("firestore: unexpected count value type %T", v)
	}
	return int(n), nil
}

func drainJobs(iter *firestore.DocumentIterator) ([]domain.Job, error) {
	defer iter.Stop()
	var jobs []domain.Job
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			return jobs, nil
		}
		if err != nil {
			return nil, err
		}
		j, err := docToJob(snap)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
}

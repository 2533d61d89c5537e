package chain

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"time"

	indexerpb "github.com/aptos-labs/aptos-indexer-protos/aptos/indexer/v1"
	txnpb "github.com/aptos-labs/aptos-indexer-protos/aptos/transaction/v1"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
)

// ReconnectPolicy bounds the stream's reconnect behavior: HTTP/2 ping 30s /
// timeout 10s, item timeout 60s, max 5 reconnects with a 5s cool-down.
type ReconnectPolicy struct {
	PingInterval time.Duration
	PingTimeout  time.Duration
	ItemTimeout  time.Duration
	MaxAttempts  int
	CoolDown     time.Duration
}

func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		PingInterval: 30 * time.Second,
		PingTimeout:  10 * time.Second,
		ItemTimeout:  60 * time.Second,
		MaxAttempts:  5,
		CoolDown:     5 * time.Second,
	}
}

// Source connects to one Aptos indexer gRPC feed and yields transaction
// batches already filtered by success/user-type/contract. One Source is
// created per marketplace pipeline.
type Source struct {
	url                     string
	authToken               string
	normalizedContractAddr  string
	startingVersion         uint64
	endingVersion           *uint64
	policy                  ReconnectPolicy
	limiter                 *rate.Limiter

	conn   *grpc.ClientConn
	client indexerpb.RawDataClient
}

func NewSource(url, authToken, normalizedContractAddr string, startingVersion uint64, endingVersion *uint64) *Source {
	return &Source{
		url:                    url,
		authToken:              authToken,
		normalizedContractAddr: normalizedContractAddr,
		startingVersion:        startingVersion,
		endingVersion:          endingVersion,
		policy:                 DefaultReconnectPolicy(),
		limiter:                rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

func (s *Source) dial(ctx context.Context) error {
	var creds credentials.TransportCredentials = insecure.NewCredentials()

	conn, err := grpc.NewClient(s.url,
		grpc.WithTransportCredentials(creds),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                s.policy.PingInterval,
			Timeout:             s.policy.PingTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(256*1024*1024),
		),
	)
	if err != nil {
		return fmt.Errorf("dial indexer grpc %s: %w", s.url, err)
	}
	s.conn = conn
	s.client = indexerpb.NewRawDataClient(conn)
	return nil
}

func (s *Source) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Batch is one chunk of decoded, user-type, successful transactions whose
// events include at least one under the marketplace contract address.
type Batch struct {
	Transactions []Transaction
	StartVersion uint64
	EndVersion   uint64
}

// Run dials the feed and invokes onBatch for every decoded, filtered batch
// it receives, reconnecting up to policy.MaxAttempts times with a cool-down
// between attempts. Run returns when ctx is cancelled or the reconnect
// budget is exhausted.
func (s *Source) Run(ctx context.Context, onBatch func(Batch) error) error {
	attempt := 0
	nextVersion := s.startingVersion

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.endingVersion != nil && nextVersion > *s.endingVersion {
			return nil
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		if s.client == nil {
			if err := s.dial(ctx); err != nil {
				attempt++
				if attempt > s.policy.MaxAttempts {
					return fmt.Errorf("exhausted reconnect attempts: %w", err)
				}
				log.Printf("[chain] dial failed (attempt %d/%d): %v", attempt, s.policy.MaxAttempts, err)
				time.Sleep(s.policy.CoolDown)
				continue
			}
		}

		md := metadata.New(map[string]string{"x-aptos-data-authorization": s.authToken})
		streamCtx := metadata.NewOutgoingContext(ctx, md)

		req := &indexerpb.GetTransactionsRequest{StartingVersion: &nextVersion}
		if s.endingVersion != nil {
			count := *s.endingVersion - nextVersion + 1
			req.TransactionsCount = &count
		}

		stream, err := s.client.GetTransactions(streamCtx, req)
		if err != nil {
			attempt++
			if attempt > s.policy.MaxAttempts {
				return fmt.Errorf("exhausted reconnect attempts opening stream: %w", err)
			}
			log.Printf("[chain] open stream failed (attempt %d/%d): %v", attempt, s.policy.MaxAttempts, err)
			s.resetConn()
			time.Sleep(s.policy.CoolDown)
			continue
		}

		attempt = 0 // a successful stream open resets the reconnect budget
		last, err := s.drainStream(ctx, stream, onBatch)
		if last > nextVersion {
			nextVersion = last + 1
		}
		if err == nil {
			continue // upstream closed cleanly (e.g. ending_version reached); loop re-evaluates
		}
		if err == io.EOF {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempt++
		if attempt > s.policy.MaxAttempts {
			return fmt.Errorf("exhausted reconnect attempts after stream error: %w", err)
		}
		log.Printf("[chain] stream error (attempt %d/%d): %v", attempt, s.policy.MaxAttempts, err)
		s.resetConn()
		time.Sleep(s.policy.CoolDown)
	}
}

func (s *Source) resetConn() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = nil
	s.client = nil
}

func (s *Source) drainStream(ctx context.Context, stream indexerpb.RawData_GetTransactionsClient, onBatch func(Batch) error) (uint64, error) {
	var lastVersion uint64

	for {
		if ctx.Err() != nil {
			return lastVersion, ctx.Err()
		}

		itemCtx, cancel := context.WithTimeout(ctx, s.policy.ItemTimeout)
		resp, err := recvWithTimeout(itemCtx, stream)
		cancel()
		if err != nil {
			return lastVersion, err
		}

		batch := Batch{}
		for _, raw := range resp.GetTransactions() {
			tx, err := convertTransaction(raw)
			if err != nil {
				// Malformed payload: log and skip this one transaction.
				log.Printf("[chain] skip malformed transaction v%d: %v", raw.GetVersion(), err)
				continue
			}
			lastVersion = tx.Version
			if !tx.Success || !tx.IsUserTxn {
				continue
			}
			if !tx.MatchesContract(s.normalizedContractAddr) {
				continue
			}
			batch.Transactions = append(batch.Transactions, tx)
		}

		if len(resp.GetTransactions()) > 0 {
			batch.StartVersion = resp.GetTransactions()[0].GetVersion()
			batch.EndVersion = resp.GetTransactions()[len(resp.GetTransactions())-1].GetVersion()
		}

		if len(batch.Transactions) > 0 {
			if err := onBatch(batch); err != nil {
				return lastVersion, err
			}
		}
	}
}

// recvWithTimeout bridges a context deadline onto stream.Recv, which does
// not itself take a context (the stream's own ctx governs cancellation but
// not per-item staleness).
func recvWithTimeout(ctx context.Context, stream indexerpb.RawData_GetTransactionsClient) (*indexerpb.TransactionsResponse, error) {
	type result struct {
		resp *indexerpb.TransactionsResponse
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := stream.Recv()
		ch <- result{resp, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.resp, r.err
	}
}

// convertTransaction maps the wire protobuf Transaction onto our internal
// representation. This is the one function that understands the upstream
// proto shape; everything downstream of the Stream Source only sees
// internal/chain.Transaction.
func convertTransaction(raw *txnpb.Transaction) (Transaction, error) {
	tx := Transaction{
		Version:     raw.GetVersion(),
		BlockHeight: raw.GetBlockHeight(),
		Hash:        "0x" + hex.EncodeToString(raw.GetInfo().GetHash()),
		Success:     raw.GetInfo().GetSuccess(),
	}

	if ts := raw.GetTimestamp(); ts != nil {
		tx.Timestamp = time.Unix(int64(ts.GetSeconds()), int64(ts.GetNanos())).UTC()
	}

	for _, c := range raw.GetInfo().GetChanges() {
		change, ok := convertChange(c)
		if ok {
			tx.Changes = append(tx.Changes, change)
		}
	}

	if user := raw.GetUser(); user != nil {
		tx.IsUserTxn = true
		tx.Sender = user.GetRequest().GetSender()
		for i, e := range user.GetEvents() {
			tx.Events = append(tx.Events, Event{
				Index:          uint64(i),
				Type:           e.GetTypeStr(),
				AccountAddress: e.GetKey().GetAccountAddress(),
				Data:           []byte(e.GetData()),
			})
		}
	}

	return tx, nil
}

func convertChange(c *txnpb.WriteSetChange) (WriteSetChange, bool) {
	if wr := c.GetWriteResource(); wr != nil {
		return WriteSetChange{
			Type:         ChangeWriteResource,
			Address:      wr.GetAddress(),
			ResourceType: wr.GetTypeStr(),
			Data:         []byte(wr.GetData()),
		}, true
	}
	if dr := c.GetDeleteResource(); dr != nil {
		return WriteSetChange{
			Type:         ChangeDeleteResource,
			Address:      dr.GetAddress(),
			ResourceType: dr.GetTypeStr(),
		}, true
	}
	if wt := c.GetWriteTableItem(); wt != nil {
		return WriteSetChange{
			Type:      ChangeWriteTableItem,
			Handle:    wt.GetHandle(),
			Key:       wt.GetKey(),
			ValueType: wt.GetData().GetValueType(),
			Value:     []byte(wt.GetData().GetValue()),
		}, true
	}
	if dt := c.GetDeleteTableItem(); dt != nil {
		return WriteSetChange{
			Type:   ChangeDeleteTableItem,
			Handle: dt.GetHandle(),
			Key:    dt.GetKey(),
		}, true
	}
	return WriteSetChange{}, false
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/singleflight"

	"triage-agent/internal/domain"
)

const (
	backendDynamo     = "dynamodb"
	attrDisease       = "disease"
	attrContent       = "content"
	maxBatchWriteSize = 25
	maxBatchRetries   = 5

	// corpusLoadTimeout bounds a shared scan, which outlives the caller that
	// started it.
	corpusLoadTimeout = time.Minute
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoKnowledgeBase.
// Defined here for testability.
type dynamodbAPI interface {
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoKnowledgeBase searches a table of knowledge documents keyed by
// "disease". The table is small and read-mostly, so it is scanned once and
// ranked in process.
type DynamoKnowledgeBase struct {
	api       dynamodbAPI
	tableName string

	mu         sync.RWMutex
	loaded     bool
	docs       []indexedDoc
	generation uint64

	loads singleflight.Group
}

// NewDynamoKnowledgeBase creates a knowledge base over tableName.
func NewDynamoKnowledgeBase(api dynamodbAPI, tableName string) (*DynamoKnowledgeBase, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	tableName = strings.TrimSpace(tableName)
	if tableName == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoKnowledgeBase{api: api, tableName: tableName}, nil
}

// Search returns up to k document contents ranked against query.
func (kb *DynamoKnowledgeBase) Search(ctx context.Context, query string, k int) ([]string, error) {
	docs, err := kb.corpus(ctx)
	if err != nil {
		return nil, &domain.RetrievalError{Backend: backendDynamo, Err: err}
	}
	return rankDocuments(docs, query, k), nil
}

// corpus loads the table on first use. Concurrent cold searches share one
// scan and none of them holds the lock while it runs; each caller stops
// waiting when its own ctx is done. A failed load is not cached so the next
// search retries it.
func (kb *DynamoKnowledgeBase) corpus(ctx context.Context) ([]indexedDoc, error) {
	kb.mu.RLock()
	if kb.loaded {
		docs := kb.docs
		kb.mu.RUnlock()
		return docs, nil
	}
	gen := kb.generation
	kb.mu.RUnlock()

	ch := kb.loads.DoChan("corpus", func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), corpusLoadTimeout)
		defer cancel()
		docs, err := kb.scanAll(loadCtx)
		if err != nil {
			return nil, err
		}
		indexed := indexDocuments(docs)

		kb.mu.Lock()
		// An Invalidate during the scan means the result may be stale.
		if kb.generation == gen {
			kb.docs = indexed
			kb.loaded = true
		}
		kb.mu.Unlock()
		return indexed, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]indexedDoc), nil
	}
}

// Invalidate drops the cached corpus so the next search rescans the table.
func (kb *DynamoKnowledgeBase) Invalidate() {
	kb.mu.Lock()
	kb.loaded = false
	kb.docs = nil
	kb.generation++
	kb.mu.Unlock()
	kb.loads.Forget("corpus")
}

func (kb *DynamoKnowledgeBase) scanAll(ctx context.Context) ([]domain.KnowledgeDocument, error) {
	p := dynamodb.NewScanPaginator(kb.api, &dynamodb.ScanInput{
		TableName:            aws.String(kb.tableName),
		ProjectionExpression: aws.String("#d, #c"),
		ExpressionAttributeNames: map[string]string{
			"#d": attrDisease,
			"#c": attrContent,
		},
	})

	var docs []domain.KnowledgeDocument
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("repository: scan %s: %w", kb.tableName, err)
		}
		for _, item := range page.Items {
			doc, err := itemToDocument(item)
			if err != nil {
				return nil, fmt.Errorf("repository: scan unmarshal: %w", err)
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// PutDocuments writes docs in batches of 25, retrying unprocessed items, and
// invalidates the cached corpus.
func (kb *DynamoKnowledgeBase) PutDocuments(ctx context.Context, docs []domain.KnowledgeDocument) error {
	defer kb.Invalidate()

	for start := 0; start < len(docs); start += maxBatchWriteSize {
		end := min(start+maxBatchWriteSize, len(docs))
		reqs := make([]types.WriteRequest, 0, end-start)
		for _, d := range docs[start:end] {
			if strings.TrimSpace(d.Disease) == "" {
				return errors.New("repository: PutDocuments: disease is required")
			}
			reqs = append(reqs, types.WriteRequest{PutRequest: &types.PutRequest{Item: documentItem(d)}})
		}
		if err := kb.batchWrite(ctx, reqs); err != nil {
			return fmt.Errorf("repository: PutDocuments: %w", err)
		}
	}
	return nil
}

func (kb *DynamoKnowledgeBase) batchWrite(ctx context.Context, reqs []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{kb.tableName: reqs}
	for attempt := 0; attempt < maxBatchRetries; attempt++ {
		out, err := kb.api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return err
		}
		if out == nil || len(out.UnprocessedItems[kb.tableName]) == 0 {
			return nil
		}
		pending = out.UnprocessedItems
	}
	return fmt.Errorf("%d items still unprocessed after %d attempts", len(pending[kb.tableName]), maxBatchRetries)
}

func itemToDocument(item map[string]types.AttributeValue) (domain.KnowledgeDocument, error) {
	disease, err := strAttr(item, attrDisease)
	if err != nil {
		return domain.KnowledgeDocument{}, err
	}
	content, err := strAttr(item, attrContent)
	if err != nil {
		return domain.KnowledgeDocument{}, err
	}
	return domain.KnowledgeDocument{Disease: disease, Content: content}, nil
}

func documentItem(d domain.KnowledgeDocument) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrDisease: &types.AttributeValueMemberS{Value: d.Disease},
		attrContent: &types.AttributeValueMemberS{Value: d.Content},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

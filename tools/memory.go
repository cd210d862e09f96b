package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oliver-os/conductor/config"
	"github.com/oliver-os/conductor/core"
)

// ============================================================================
// MEMORY BACKEND
// ============================================================================

type memoryEntry struct {
	Value     string
	StoredAt  time.Time
	ExpiresAt time.Time // zero when the entry never expires
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// MemoryBackend serves an in-process key/value store with TTL expiry.
// Expired entries are collected by a janitor goroutine and are also
// filtered on read, so a lookup never returns a stale value between
// janitor passes.
type MemoryBackend struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	defaultTTL time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

type storeMemoryArgs struct {
	Key        string `json:"key" jsonschema:"required,description=Key to store the value under"`
	Value      string `json:"value" jsonschema:"required,description=Value to store"`
	TTLSeconds int    `json:"ttl_seconds" jsonschema:"description=Seconds until the entry expires (0 uses the backend default, negative never expires)"`
}

type retrieveMemoryArgs struct {
	Key string `json:"key" jsonschema:"required,description=Key to look up"`
}

type searchMemoryArgs struct {
	Query string `json:"query" jsonschema:"required,description=Substring matched against keys and values"`
}

type deleteMemoryArgs struct {
	Key string `json:"key" jsonschema:"required,description=Key to delete"`
}

// NewMemoryBackend creates a memory backend and starts its janitor.
func NewMemoryBackend(cfg config.ToolConfig) *MemoryBackend {
	b := &MemoryBackend{
		entries:    make(map[string]memoryEntry),
		defaultTTL: time.Duration(cfg.DefaultTTL) * time.Second,
		stop:       make(chan struct{}),
	}
	go b.janitor()
	return b
}

func (b *MemoryBackend) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case now := <-ticker.C:
			b.mu.Lock()
			for key, entry := range b.entries {
				if entry.expired(now) {
					delete(b.entries, key)
				}
			}
			b.mu.Unlock()
		}
	}
}

// Name implements Backend.
func (b *MemoryBackend) Name() string { return "memory" }

// Tools implements Backend.
func (b *MemoryBackend) Tools() []Definition {
	return []Definition{
		{
			Name:        "store_memory",
			Description: "Store a value under a key with optional expiry",
			InputSchema: schemaFor(&storeMemoryArgs{}),
		},
		{
			Name:        "retrieve_memory",
			Description: "Retrieve a stored value by key",
			InputSchema: schemaFor(&retrieveMemoryArgs{}),
		},
		{
			Name:        "search_memory",
			Description: "Find stored entries whose key or value contains a substring",
			InputSchema: schemaFor(&searchMemoryArgs{}),
		},
		{
			Name:        "delete_memory",
			Description: "Delete a stored entry by key",
			InputSchema: schemaFor(&deleteMemoryArgs{}),
		},
	}
}

// Execute implements Backend.
func (b *MemoryBackend) Execute(ctx context.Context, tool string, args map[string]any) (ToolResult, error) {
	switch tool {
	case "store_memory":
		return b.store(args)
	case "retrieve_memory":
		return b.retrieve(args)
	case "search_memory":
		return b.search(args)
	case "delete_memory":
		return b.delete(args)
	default:
		return ToolResult{}, core.NewNotFoundError("tool", tool)
	}
}

// HealthCheck implements Backend.
func (b *MemoryBackend) HealthCheck(ctx context.Context) error {
	select {
	case <-b.stop:
		return fmt.Errorf("memory backend is closed")
	default:
		return nil
	}
}

// Close stops the janitor.
func (b *MemoryBackend) Close() error {
	b.stopOnce.Do(func() { close(b.stop) })
	return nil
}

func (b *MemoryBackend) store(args map[string]any) (ToolResult, error) {
	var in storeMemoryArgs
	if err := decodeArgs("store_memory", schemaFor(&storeMemoryArgs{}), args, &in); err != nil {
		return ToolResult{}, err
	}
	now := time.Now()
	entry := memoryEntry{Value: in.Value, StoredAt: now}
	ttl := b.defaultTTL
	switch {
	case in.TTLSeconds > 0:
		ttl = time.Duration(in.TTLSeconds) * time.Second
	case in.TTLSeconds < 0:
		ttl = 0
	}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	}

	b.mu.Lock()
	b.entries[in.Key] = entry
	b.mu.Unlock()

	return ToolResult{
		Success: true,
		Content: fmt.Sprintf("Stored %q", in.Key),
		Metadata: map[string]any{
			"key": in.Key,
			"ttl": ttl.String(),
		},
	}, nil
}

func (b *MemoryBackend) retrieve(args map[string]any) (ToolResult, error) {
	var in retrieveMemoryArgs
	if err := decodeArgs("retrieve_memory", schemaFor(&retrieveMemoryArgs{}), args, &in); err != nil {
		return ToolResult{}, err
	}
	b.mu.RLock()
	entry, ok := b.entries[in.Key]
	b.mu.RUnlock()
	if !ok || entry.expired(time.Now()) {
		return ToolResult{}, core.NewNotFoundError("memory entry", in.Key)
	}
	return ToolResult{
		Success: true,
		Content: entry.Value,
		Metadata: map[string]any{
			"key":       in.Key,
			"stored_at": entry.StoredAt.Format(time.RFC3339),
		},
	}, nil
}

func (b *MemoryBackend) search(args map[string]any) (ToolResult, error) {
	var in searchMemoryArgs
	if err := decodeArgs("search_memory", schemaFor(&searchMemoryArgs{}), args, &in); err != nil {
		return ToolResult{}, err
	}
	query := strings.ToLower(in.Query)
	now := time.Now()

	b.mu.RLock()
	var matches []string
	for key, entry := range b.entries {
		if entry.expired(now) {
			continue
		}
		if strings.Contains(strings.ToLower(key), query) ||
			strings.Contains(strings.ToLower(entry.Value), query) {
			matches = append(matches, fmt.Sprintf("%s: %s", key, entry.Value))
		}
	}
	b.mu.RUnlock()

	sort.Strings(matches)
	return ToolResult{
		Success: true,
		Content: strings.Join(matches, "\n"),
		Metadata: map[string]any{
			"query":   in.Query,
			"matches": len(matches),
		},
	}, nil
}

func (b *MemoryBackend) delete(args map[string]any) (ToolResult, error) {
	var in deleteMemoryArgs
	if err := decodeArgs("delete_memory", schemaFor(&deleteMemoryArgs{}), args, &in); err != nil {
		return ToolResult{}, err
	}
	b.mu.Lock()
	_, ok := b.entries[in.Key]
	delete(b.entries, in.Key)
	b.mu.Unlock()
	if !ok {
		return ToolResult{}, core.NewNotFoundError("memory entry", in.Key)
	}
	return ToolResult{
		Success: true,
		Content: fmt.Sprintf("Deleted %q", in.Key),
	}, nil
}

package redis

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/vecprep/internal/db"
)

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestWaitForReady_ImmediatePing(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.WaitForReady(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIsRedisErr(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisError("Index Already Exists")))

	s := NewStoreForTest(c)
	err := s.do(context.Background(), s.b().Ping().Build()).Error()
	if !isRedisErr(err, "index already exists") {
		t.Errorf("isRedisErr(%v) = false", err)
	}
	if isRedisErr(context.DeadlineExceeded, "deadline") {
		t.Error("non-server errors must not match")
	}
}

// --- hash.go tests ---

func TestHSetMulti_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(),
			mock.Match("HSET", "vecprep:listings:1", "__key", "1", "__vector", "abcd"),
			mock.Match("HSET", "k2", "f2", "v2"),
		).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(1)),
			mock.Result(mock.RedisInt64(1)),
		})

	s := NewStoreForTest(c)
	err := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "vecprep:listings:1", Fields: map[string]string{"__vector": "abcd", "__key": "1"}},
		{Key: "k2", Fields: map[string]string{"f2": "v2"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHSetMulti_ReportsFailingKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(1)),
			mock.Result(mock.RedisError("OOM command not allowed")),
		})

	s := NewStoreForTest(c)
	err := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"f": "v"}},
		{Key: "k2", Fields: map[string]string{"f": "v"}},
	})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpHSet {
		t.Fatalf("expected HSET db.Error, got %v", err)
	}
}

func TestHSetMulti_Empty(t *testing.T) {
	s := NewStoreForTest(nil) // client not called
	if err := s.HSetMulti(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- index.go tests ---

func vectorIndex() *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:     "vecprep:listings",
		Prefixes: []string{"vecprep:listings:"},
		Fields: []db.IndexField{
			{Name: "__key", Type: db.IndexFieldTag},
			{
				Name: "__vector", Alias: "vector", Type: db.IndexFieldVector,
				VectorAlgo: db.VectorFlat, VectorDim: 14, VectorDistance: db.DistanceCosine,
			},
		},
	}
}

func TestCreateIndex_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match(
			"FT.CREATE", "vecprep:listings", "ON", "HASH",
			"PREFIX", "1", "vecprep:listings:",
			"SCHEMA",
			"__key", "TAG",
			"__vector", "AS", "vector", "VECTOR", "FLAT", "6",
			"TYPE", "FLOAT32", "DIM", "14", "DISTANCE_METRIC", "COSINE",
		)).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.CreateIndex(context.Background(), vectorIndex()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisError("Index already exists")))

	s := NewStoreForTest(c)
	err := s.CreateIndex(context.Background(), vectorIndex())
	if !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}
}

func TestCreateIndex_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	if err := s.CreateIndex(context.Background(), vectorIndex()); !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestCreateIndex_InvalidDefinition(t *testing.T) {
	s := NewStoreForTest(nil) // rejected before any command
	if err := s.CreateIndex(context.Background(), &db.IndexDefinition{Name: "idx"}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestDropIndex_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "test:idx")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.DropIndex(context.Background(), "test:idx"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDropIndex_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "test:idx")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	s := NewStoreForTest(c)
	err := s.DropIndex(context.Background(), "test:idx")
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestIndexInfo_NumDocs(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "test:idx")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("index_name"), mock.RedisString("test:idx"),
			mock.RedisString("num_docs"), mock.RedisString("42"),
		)))

	info, err := NewStoreForTest(c).IndexInfo(context.Background(), "test:idx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Name != "test:idx" || info.NumDocs != 42 {
		t.Errorf("IndexInfo() = %+v", info)
	}
}

func TestIndexInfo_VectorDimension(t *testing.T) {
	tests := []struct {
		name  string
		attrs rueidis.RedisMessage
		want  int
	}{
		{
			name: "redis flat attribute",
			attrs: mock.RedisArray(
				mock.RedisArray(
					mock.RedisString("identifier"), mock.RedisString("__key"),
					mock.RedisString("type"), mock.RedisString("TAG"),
				),
				mock.RedisArray(
					mock.RedisString("identifier"), mock.RedisString("__vector"),
					mock.RedisString("attribute"), mock.RedisString("vector"),
					mock.RedisString("type"), mock.RedisString("VECTOR"),
					mock.RedisString("algorithm"), mock.RedisString("FLAT"),
					mock.RedisString("dim"), mock.RedisInt64(47),
				),
			),
			want: 47,
		},
		{
			name: "valkey nested index",
			attrs: mock.RedisArray(
				mock.RedisArray(
					mock.RedisString("identifier"), mock.RedisString("__vector"),
					mock.RedisString("type"), mock.RedisString("VECTOR"),
					mock.RedisString("index"), mock.RedisArray(
						mock.RedisString("capacity"), mock.RedisInt64(10240),
						mock.RedisString("dimensions"), mock.RedisInt64(34),
						mock.RedisString("distance_metric"), mock.RedisString("COSINE"),
					),
				),
			),
			want: 34,
		},
		{
			name: "no vector field",
			attrs: mock.RedisArray(mock.RedisArray(
				mock.RedisString("identifier"), mock.RedisString("__key"),
				mock.RedisString("type"), mock.RedisString("TAG"),
			)),
			want: 0,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			c := mock.NewClient(ctrl)
			c.EXPECT().
				Do(gomock.Any(), mock.Match("FT.INFO", "test:idx")).
				Return(mock.Result(mock.RedisArray(
					mock.RedisString("num_docs"), mock.RedisInt64(3),
					mock.RedisString("attributes"), tc.attrs,
				)))

			info, err := NewStoreForTest(c).IndexInfo(context.Background(), "test:idx")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if info.Dimension != tc.want || info.NumDocs != 3 {
				t.Errorf("IndexInfo() = %+v, want dimension %d", info, tc.want)
			}
		})
	}
}

func TestIndexExists(t *testing.T) {
	tests := []struct {
		name    string
		reply   rueidis.RedisResult
		want    bool
		wantErr bool
	}{
		{"exists", mock.Result(mock.RedisArray(mock.RedisString("num_docs"), mock.RedisInt64(0))), true, false},
		{"redis unknown", mock.Result(mock.RedisError("Unknown Index name")), false, false},
		{"valkey not found", mock.Result(mock.RedisError("Index with name 'test:idx' not found")), false, false},
		{"transport error", mock.ErrorResult(context.DeadlineExceeded), false, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			c := mock.NewClient(ctrl)
			c.EXPECT().
				Do(gomock.Any(), mock.Match("FT.INFO", "test:idx")).
				Return(tc.reply)

			exists, err := NewStoreForTest(c).IndexExists(context.Background(), "test:idx")
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if exists != tc.want {
				t.Errorf("exists = %v, want %v", exists, tc.want)
			}
		})
	}
}

func TestBuildFieldArgs(t *testing.T) {
	tests := []struct {
		name  string
		field db.IndexField
		want  []string
	}{
		{"tag", db.IndexField{Name: "__key", Type: db.IndexFieldTag}, []string{"__key", "TAG"}},
		{"numeric", db.IndexField{Name: "n", Type: db.IndexFieldNumeric}, []string{"n", "NUMERIC"}},
		{"vector defaults", db.IndexField{Name: "v", Type: db.IndexFieldVector, VectorDim: 3}, []string{
			"v", "VECTOR", "FLAT", "6", "TYPE", "FLOAT32", "DIM", "3", "DISTANCE_METRIC", "COSINE",
		}},
		{"vector hnsw", db.IndexField{
			Name: "v", Alias: "vector", Type: db.IndexFieldVector, VectorDim: 3,
			VectorAlgo: db.VectorHNSW, VectorDistance: db.DistanceL2, VectorM: 16, VectorEFConstruct: 200,
		}, []string{
			"v", "AS", "vector", "VECTOR", "HNSW", "10",
			"TYPE", "FLOAT32", "DIM", "3", "DISTANCE_METRIC", "L2", "M", "16", "EF_CONSTRUCTION", "200",
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := buildFieldArgs(&tc.field)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("buildFieldArgs() = %v\nwant %v", got, tc.want)
			}
		})
	}
}

func TestBuildFieldArgs_Errors(t *testing.T) {
	if _, err := buildFieldArgs(&db.IndexField{Name: "", Type: db.IndexFieldTag}); err == nil {
		t.Error("expected error for empty field name")
	}
	if _, err := buildFieldArgs(&db.IndexField{Name: "f", Type: db.IndexFieldType(99)}); err == nil {
		t.Error("expected error for unknown type")
	}
	if _, err := buildFieldArgs(&db.IndexField{Name: "f", Type: db.IndexFieldVector}); err == nil {
		t.Error("expected error for zero vector dim")
	}
}

// --- helpers ---

// isDBError is a test helper for checking wrapped db.Error.
func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}

package repository

import (
	"reflect"
	"testing"

	"unimarket/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

func TestPendingQuery_NewestFirst(t *testing.T) {
	_, opts := pendingQuery(model.ScopeAll(), 50)

	wantSort := bson.D{{Key: "created_at", Value: -1}}
	if !reflect.DeepEqual(opts.Sort, wantSort) {
		t.Errorf("expected newest-first sort %v, got %v", wantSort, opts.Sort)
	}
	if opts.Limit == nil || *opts.Limit != 50 {
		t.Errorf("expected limit 50, got %v", opts.Limit)
	}
}

func TestPendingQuery_FilterCoversLegacyRecords(t *testing.T) {
	filter, _ := pendingQuery(model.ScopeOwn("vendor-1"), 10)

	if filter["user_id"] != "vendor-1" {
		t.Errorf("expected owner scope in filter, got %v", filter["user_id"])
	}

	or, ok := filter["$or"].([]bson.M)
	if !ok || len(or) != 3 {
		t.Fatalf("expected pending, empty and absent status clauses, got %v", filter["$or"])
	}
	if or[0]["status"] != model.StatusPending {
		t.Errorf("expected explicit pending clause, got %v", or[0])
	}
}

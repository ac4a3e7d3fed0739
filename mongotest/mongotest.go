// Package mongotest wires the driver's mock deployment into the database
// package and builds the scripted server replies tests feed it.
package mongotest

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"curalink/database"
)

const ns = "curalink.mock"

// New returns an mtest harness backed by the mock deployment.
func New(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

// Bind points every database collection at the subtest's mock client.
func Bind(mt *mtest.T) {
	database.Use(mt.Coll.Database())
}

// Doc round-trips v through BSON so it can be served from a mock cursor.
func Doc(t testing.TB, v interface{}) bson.D {
	t.Helper()
	raw, err := bson.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %T: %v", v, err)
	}
	var d bson.D
	if err := bson.Unmarshal(raw, &d); err != nil {
		t.Fatalf("unmarshal %T: %v", v, err)
	}
	return d
}

// Cursor is a single exhausted batch, the reply to find and aggregate.
func Cursor(docs ...bson.D) bson.D {
	return mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, docs...)
}

// Empty is a find reply with no documents.
func Empty() bson.D {
	return Cursor()
}

// Count is the reply to CountDocuments.
func Count(n int64) bson.D {
	if n == 0 {
		return Cursor()
	}
	return Cursor(bson.D{{Key: "n", Value: n}})
}

// OK acknowledges a write. n is the matched/deleted count.
func OK(n int) bson.D {
	return mtest.CreateSuccessResponse(
		bson.E{Key: "n", Value: n},
		bson.E{Key: "nModified", Value: n},
	)
}

// Value is the reply to findAndModify.
func Value(doc interface{}) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "value", Value: doc})
}

// Distinct is the reply to a distinct command.
func Distinct(values ...interface{}) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "values", Value: bson.A(values)})
}

// DuplicateKey fails a write with error code 11000.
func DuplicateKey() bson.D {
	return mtest.CreateWriteErrorsResponse(mtest.WriteError{
		Index:   0,
		Code:    11000,
		Message: "E11000 duplicate key error",
	})
}

// Fail rejects the next command with a generic server error.
func Fail() bson.D {
	return mtest.CreateCommandErrorResponse(mtest.CommandError{
		Code:    8,
		Name:    "UnknownError",
		Message: "mock failure",
	})
}

// Commands drains the started events recorded so far and returns each as
// "<command> <collection>", e.g. "delete favorites".
func Commands(mt *mtest.T) []string {
	var out []string
	for evt := mt.GetStartedEvent(); evt != nil; evt = mt.GetStartedEvent() {
		coll, _ := evt.Command.Lookup(evt.CommandName).StringValueOK()
		out = append(out, evt.CommandName+" "+coll)
	}
	return out
}

// Sent drains started events up to the first name command against coll and
// returns its body.
func Sent(mt *mtest.T, name, coll string) (bson.Raw, bool) {
	for evt := mt.GetStartedEvent(); evt != nil; evt = mt.GetStartedEvent() {
		if evt.CommandName != name {
			continue
		}
		if c, _ := evt.Command.Lookup(name).StringValueOK(); c == coll {
			return evt.Command, true
		}
	}
	return nil, false
}

// Stage returns the first stage called name in an aggregate command.
func Stage(cmd bson.Raw, name string) (bson.Raw, bool) {
	stages, err := cmd.Lookup("pipeline").Array().Values()
	if err != nil {
		return nil, false
	}
	for _, s := range stages {
		if v, err := s.Document().LookupErr(name); err == nil {
			return v.DocumentOK()
		}
	}
	return nil, false
}

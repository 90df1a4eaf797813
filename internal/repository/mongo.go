package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fathima-sithara/messaging-service/internal/domain"
)

type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

func NewMongoRepository(coll *mongo.Collection) *MongoRepository {
	for _, ix := range []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "sender_id", Value: 1}, {Key: "timestamp", Value: 1}}},
	} {
		_, _ = coll.Indexes().CreateOne(context.Background(), ix)
	}
	return &MongoRepository{coll: coll}
}

func (r *MongoRepository) Append(ctx context.Context, m *domain.Message) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.coll.InsertOne(ctx, m)
	return err
}

func pairFilter(userID, otherID string) bson.M {
	return bson.M{"$or": []bson.M{
		{"sender_id": userID, "receiver_id": otherID},
		{"sender_id": otherID, "receiver_id": userID},
	}}
}

// GetThread returns every message between the pair, ascending by timestamp.
// Ties fall back to insertion (_id) order.
func (r *MongoRepository) GetThread(ctx context.Context, userID, otherID string) ([]*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, pairFilter(userID, otherID), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*domain.Message{}
	for cur.Next(ctx) {
		var m domain.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, cur.Err()
}

// Edit mutates content on the stored record. The owner check lives inside the
// update filter, so it is evaluated against the authoritative document, never
// a client-cached copy.
func (r *MongoRepository) Edit(ctx context.Context, messageID, editorID, newContent string, now time.Time) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res := r.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": messageID, "sender_id": editorID},
		bson.M{"$set": bson.M{"content": newContent, "edited": true, "edited_at": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var m domain.Message
	err := res.Decode(&m)
	if err == nil {
		return &m, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	// Distinguish unknown message from an edit by a non-owner.
	if err := r.coll.FindOne(ctx, bson.M{"_id": messageID}).Err(); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return nil, domain.ErrForbidden
}

// ListConversations groups all messages touching userID by counterpart and
// keeps the temporally-last message per counterpart, newest conversations
// first. Counterpart enrichment happens in the service layer.
func (r *MongoRepository) ListConversations(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": []bson.M{
			{"sender_id": userID},
			{"receiver_id": userID},
		}}}},
		{{Key: "$sort", Value: bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$sender_id", userID}},
				"$receiver_id",
				"$sender_id",
			}},
			"last_message": bson.M{"$last": "$$ROOT"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last_message.timestamp", Value: -1}}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	type row struct {
		CounterpartID string         `bson:"_id"`
		LastMessage   domain.Message `bson:"last_message"`
	}

	out := []*domain.Conversation{}
	for cur.Next(ctx) {
		var rw row
		if err := cur.Decode(&rw); err != nil {
			return nil, err
		}
		last := rw.LastMessage
		out = append(out, &domain.Conversation{
			UserData:    domain.UserSummary{ID: rw.CounterpartID},
			LastMessage: &last,
		})
	}
	return out, cur.Err()
}

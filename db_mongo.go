package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userDoc struct {
	ID        primitive.ObjectID   `bson:"_id"`
	Username  string               `bson:"username"`
	Email     string               `bson:"email"`
	Password  string               `bson:"password"`
	Thoughts  []primitive.ObjectID `bson:"thoughts"`
	Friends   []primitive.ObjectID `bson:"friends"`
	CreatedAt time.Time            `bson:"createdAt"`
}

type reactionDoc struct {
	ID           primitive.ObjectID `bson:"reactionId"`
	ReactionBody string             `bson:"reactionBody"`
	Username     string             `bson:"username"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

type thoughtDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	ThoughtText string             `bson:"thoughtText"`
	Username    string             `bson:"username"`
	CreatedAt   time.Time          `bson:"createdAt"`
	Reactions   []reactionDoc      `bson:"reactions"`
}

func hexes(ids []primitive.ObjectID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Hex())
	}
	return out
}

// objectIDs parses the valid ids and drops the rest; an id that is not an
// ObjectID cannot match any document.
func objectIDs(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			out = append(out, oid)
		}
	}
	return out
}

func (d *userDoc) toUser() *User {
	return &User{
		ID:         d.ID.Hex(),
		Username:   d.Username,
		Email:      d.Email,
		Password:   d.Password,
		ThoughtIDs: hexes(d.Thoughts),
		FriendIDs:  hexes(d.Friends),
		CreatedAt:  d.CreatedAt.UTC(),
	}
}

func (d *thoughtDoc) toThought() *Thought {
	t := &Thought{
		ID:          d.ID.Hex(),
		ThoughtText: d.ThoughtText,
		Username:    d.Username,
		CreatedAt:   d.CreatedAt.UTC(),
		Reactions:   make([]Reaction, 0, len(d.Reactions)),
	}
	for _, r := range d.Reactions {
		t.Reactions = append(t.Reactions, Reaction{
			ID:           r.ID.Hex(),
			ReactionBody: r.ReactionBody,
			Username:     r.Username,
			CreatedAt:    r.CreatedAt.UTC(),
		})
	}
	return t
}

// MongoStore keeps users and thoughts as documents. Reactions are embedded in
// their thought; users hold thought and friend ids.
type MongoStore struct {
	client   *mongo.Client
	users    *mongo.Collection
	thoughts *mongo.Collection
	log      logrus.FieldLogger
}

func NewMongoStore(ctx context.Context, uri, dbName string, log logrus.FieldLogger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}
	db := client.Database(dbName)
	m := &MongoStore{
		client:   client,
		users:    db.Collection("users"),
		thoughts: db.Collection("thoughts"),
		log:      log,
	}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

func (m *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := m.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("creating user indexes: %w", err)
	}
	_, err = m.thoughts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "username", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		m.log.WithError(err).Warn("failed to create thought index")
	}
	return nil
}

func (m *MongoStore) CreateUser(ctx context.Context, u *User) (*User, error) {
	doc := userDoc{
		ID:        primitive.NewObjectID(),
		Username:  u.Username,
		Email:     u.Email,
		Password:  u.Password,
		Thoughts:  []primitive.ObjectID{},
		Friends:   []primitive.ObjectID{},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := m.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	return doc.toUser(), nil
}

func (m *MongoStore) findUser(ctx context.Context, filter bson.M) (*User, error) {
	var doc userDoc
	if err := m.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return doc.toUser(), nil
}

func (m *MongoStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	return m.findUser(ctx, bson.M{"_id": oid})
}

func (m *MongoStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return m.findUser(ctx, bson.M{"email": email})
}

func (m *MongoStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return m.findUser(ctx, bson.M{"username": username})
}

func (m *MongoStore) findUsers(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*User, error) {
	cur, err := m.users.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding users: %w", err)
	}
	out := make([]*User, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toUser())
	}
	return out, nil
}

func (m *MongoStore) GetUsersByIDs(ctx context.Context, ids []string) ([]*User, error) {
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return []*User{}, nil
	}
	found, err := m.findUsers(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	// $in does not keep the requested order
	byID := make(map[string]*User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	out := make([]*User, 0, len(found))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *MongoStore) ListUsers(ctx context.Context) ([]*User, error) {
	return m.findUsers(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

func (m *MongoStore) PushUserThought(ctx context.Context, userID, thoughtID string) error {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return ErrNotFound
	}
	tid, err := primitive.ObjectIDFromHex(thoughtID)
	if err != nil {
		return fmt.Errorf("invalid thought id %q: %w", thoughtID, err)
	}
	res, err := m.users.UpdateByID(ctx, uid, bson.M{"$push": bson.M{"thoughts": tid}})
	if err != nil {
		return fmt.Errorf("pushing thought reference: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoStore) AddFriend(ctx context.Context, userID, friendID string) (*User, error) {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, nil
	}
	fid, err := primitive.ObjectIDFromHex(friendID)
	if err != nil {
		return nil, fmt.Errorf("invalid friend id %q: %w", friendID, err)
	}
	var doc userDoc
	err = m.users.FindOneAndUpdate(ctx,
		bson.M{"_id": uid},
		bson.M{"$addToSet": bson.M{"friends": fid}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("adding friend: %w", err)
	}
	return doc.toUser(), nil
}

func (m *MongoStore) CreateThought(ctx context.Context, t *Thought) (*Thought, error) {
	doc := thoughtDoc{
		ID:          primitive.NewObjectID(),
		ThoughtText: t.ThoughtText,
		Username:    t.Username,
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
		Reactions:   []reactionDoc{},
	}
	if _, err := m.thoughts.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("inserting thought: %w", err)
	}
	return doc.toThought(), nil
}

func (m *MongoStore) GetThought(ctx context.Context, id string) (*Thought, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var doc thoughtDoc
	if err := m.thoughts.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding thought: %w", err)
	}
	return doc.toThought(), nil
}

func (m *MongoStore) findThoughts(ctx context.Context, filter bson.M) ([]*Thought, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := m.thoughts.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("listing thoughts: %w", err)
	}
	var docs []thoughtDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding thoughts: %w", err)
	}
	out := make([]*Thought, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toThought())
	}
	return out, nil
}

func (m *MongoStore) GetThoughtsByIDs(ctx context.Context, ids []string) ([]*Thought, error) {
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return []*Thought{}, nil
	}
	found, err := m.findThoughts(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*Thought, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}
	out := make([]*Thought, 0, len(found))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MongoStore) ListThoughts(ctx context.Context, username string) ([]*Thought, error) {
	filter := bson.M{}
	if username != "" {
		filter["username"] = username
	}
	return m.findThoughts(ctx, filter)
}

func (m *MongoStore) AddReaction(ctx context.Context, thoughtID string, r *Reaction) (*Thought, error) {
	oid, err := primitive.ObjectIDFromHex(thoughtID)
	if err != nil {
		return nil, nil
	}
	reaction := reactionDoc{
		ID:           primitive.NewObjectID(),
		ReactionBody: r.ReactionBody,
		Username:     r.Username,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	var doc thoughtDoc
	err = m.thoughts.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$push": bson.M{"reactions": reaction}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("adding reaction: %w", err)
	}
	return doc.toThought(), nil
}

func (m *MongoStore) Ping(ctx context.Context) error { return m.client.Ping(ctx, nil) }

func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

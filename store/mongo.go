package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"itinera/db"
	"itinera/models"
)

// Mongo backs the stores with the collections bound by db.Connect.
type Mongo struct {
	client      *mongo.Client
	itineraries *mongo.Collection
	items       *mongo.Collection
	places      *mongo.Collection
}

func NewMongo(client *mongo.Client) *Mongo {
	return &Mongo{
		client:      client,
		itineraries: db.ItineraryCollection,
		items:       db.ItineraryItemsCollection,
		places:      db.PlacesCollection,
	}
}

func (m *Mongo) Items() ItemStore            { return mongoItems{m.items} }
func (m *Mongo) Itineraries() ItineraryStore { return mongoItineraries{m.itineraries} }
func (m *Mongo) Places() PlaceLookup         { return mongoPlaces{m.places} }

// Do runs fn inside a multi-document transaction. The driver may retry fn
// on transient errors, so fn must rebuild its state from reads.
func (m *Mongo) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(context.Background())

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, txnOpts)
	return err
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicateSlot, err)
	}
	return err
}

type mongoItems struct{ c *mongo.Collection }

func (s mongoItems) GetAllByItinerary(ctx context.Context, itineraryID string) ([]models.ItineraryItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "day_number", Value: 1}, {Key: "sort_order", Value: 1}})
	cursor, err := s.c.Find(ctx, bson.M{"itineraryid": itineraryID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []models.ItineraryItem{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s mongoItems) GetByID(ctx context.Context, itemID string) (models.ItineraryItem, error) {
	var item models.ItineraryItem
	err := s.c.FindOne(ctx, bson.M{"itemid": itemID}).Decode(&item)
	return item, translate(err)
}

func (s mongoItems) Create(ctx context.Context, item models.ItineraryItem) error {
	_, err := s.c.InsertOne(ctx, item)
	return translate(err)
}

func (s mongoItems) CreateBatch(ctx context.Context, items []models.ItineraryItem) error {
	if len(items) == 0 {
		return nil
	}
	docs := make([]interface{}, len(items))
	for i := range items {
		docs[i] = items[i]
	}
	_, err := s.c.InsertMany(ctx, docs)
	return translate(err)
}

func (s mongoItems) Update(ctx context.Context, item models.ItineraryItem) error {
	res, err := s.c.ReplaceOne(ctx, bson.M{"itemid": item.ItemID}, item)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRange first parks every item on a negative day number, which no real
// item uses, so the unique slot index only sees the final positions.
func (s mongoItems) UpdateRange(ctx context.Context, items []models.ItineraryItem) error {
	switch len(items) {
	case 0:
		return nil
	case 1:
		return s.Update(ctx, items[0])
	}

	park := make([]mongo.WriteModel, 0, len(items))
	final := make([]mongo.WriteModel, 0, len(items))
	for i, it := range items {
		park = append(park, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"itemid": it.ItemID}).
			SetUpdate(bson.M{"$set": bson.M{"day_number": -(i + 1)}}))
		final = append(final, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"itemid": it.ItemID}).
			SetReplacement(it))
	}

	ordered := options.BulkWrite().SetOrdered(true)
	res, err := s.c.BulkWrite(ctx, park, ordered)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount != int64(len(items)) {
		return fmt.Errorf("update range: matched %d of %d items: %w", res.MatchedCount, len(items), ErrNotFound)
	}
	if _, err := s.c.BulkWrite(ctx, final, ordered); err != nil {
		return translate(err)
	}
	return nil
}

func (s mongoItems) SetTransportDurations(ctx context.Context, durations map[string]int) error {
	if len(durations) == 0 {
		return nil
	}
	now := time.Now()
	writes := make([]mongo.WriteModel, 0, len(durations))
	for id, secs := range durations {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"itemid": id}).
			SetUpdate(bson.M{"$set": bson.M{"transport_duration": secs, "updated_at": now}}))
	}
	_, err := s.c.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	return err
}

func (s mongoItems) Delete(ctx context.Context, itemID string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"itemid": itemID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s mongoItems) DeleteByItinerary(ctx context.Context, itineraryID string) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"itineraryid": itineraryID})
	return err
}

type mongoItineraries struct{ c *mongo.Collection }

func live(id string) bson.M {
	return bson.M{"itineraryid": id, "deleted": bson.M{"$ne": true}}
}

func (s mongoItineraries) GetByID(ctx context.Context, id string) (models.Itinerary, error) {
	var it models.Itinerary
	err := s.c.FindOne(ctx, live(id)).Decode(&it)
	return it, translate(err)
}

func (s mongoItineraries) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, live(id), options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s mongoItineraries) Create(ctx context.Context, it models.Itinerary) error {
	_, err := s.c.InsertOne(ctx, it)
	return err
}

func (s mongoItineraries) Update(ctx context.Context, it models.Itinerary) error {
	set := bson.M{
		"name":        it.Name,
		"description": it.Description,
		"start_date":  it.StartDate,
		"end_date":    it.EndDate,
		"status":      it.Status,
		"published":   it.Published,
		"is_template": it.IsTemplate,
		"updated_at":  it.UpdatedAt,
	}
	res, err := s.c.UpdateOne(ctx, live(it.ItineraryID), bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s mongoItineraries) SoftDelete(ctx context.Context, id string) error {
	res, err := s.c.UpdateOne(ctx, live(id), bson.M{"$set": bson.M{"deleted": true, "updated_at": time.Now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s mongoItineraries) List(ctx context.Context, f ListFilter) ([]models.Itinerary, error) {
	filter := bson.M{"deleted": bson.M{"$ne": true}}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.StartDate != "" {
		filter["start_date"] = f.StartDate
	}
	if f.Published != nil {
		filter["published"] = *f.Published
	}
	if f.Template != nil {
		filter["is_template"] = *f.Template
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.Itinerary{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s mongoItineraries) BumpVersion(ctx context.Context, id string, expected int64) (int64, error) {
	filter := live(id)
	filter["version"] = expected
	res, err := s.c.UpdateOne(ctx, filter, bson.M{
		"$inc": bson.M{"version": 1},
		"$set": bson.M{"updated_at": time.Now()},
	})
	if err != nil {
		return 0, err
	}
	if res.MatchedCount == 0 {
		exists, err := s.Exists(ctx, id)
		if err != nil {
			return 0, err
		}
		if !exists {
			return 0, ErrNotFound
		}
		return 0, ErrVersionConflict
	}
	return expected + 1, nil
}

type mongoPlaces struct{ c *mongo.Collection }

func (s mongoPlaces) GetPlaces(ctx context.Context, ids []string) (map[string]models.Place, error) {
	out := make(map[string]models.Place, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cursor, err := s.c.Find(ctx, bson.M{"placeid": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var p models.Place
		if err := cursor.Decode(&p); err != nil {
			return nil, err
		}
		out[p.PlaceID] = p
	}
	return out, cursor.Err()
}

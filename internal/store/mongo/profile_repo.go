package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"hustlex/internal/domain"
)

// userDoc is the slice of the shared users collection the relay reads.
type userDoc struct {
	ID      bson.ObjectID `bson:"_id"`
	Email   string        `bson:"email"`
	Profile struct {
		FirstName string `bson:"firstName"`
		LastName  string `bson:"lastName"`
		Avatar    string `bson:"avatar"`
	} `bson:"profile"`
}

// ProfileRepo reads display profiles from the users collection. User ids
// are ObjectID hex strings.
type ProfileRepo struct {
	coll *mongo.Collection
}

func NewProfileRepo(c *Client) *ProfileRepo {
	return &ProfileRepo{coll: c.UsersCollection()}
}

var _ domain.ProfileRepository = (*ProfileRepo)(nil)

func (r *ProfileRepo) GetDisplayProfile(ctx context.Context, userID string) (*domain.DisplayProfile, error) {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	opts := options.FindOne().SetProjection(bson.M{"email": 1, "profile": 1})
	var doc userDoc
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return &domain.DisplayProfile{
		ID:    doc.ID.Hex(),
		Email: doc.Email,
		Profile: domain.ProfileSnippet{
			FirstName: doc.Profile.FirstName,
			LastName:  doc.Profile.LastName,
			Avatar:    doc.Profile.Avatar,
		},
	}, nil
}

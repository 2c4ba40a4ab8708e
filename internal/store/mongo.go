package store

import (
	"context"
	"errors"
	"time"

	"github.com/biospace/apiserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const usersCollection = "users"

// MongoUserRepository persists users in a MongoDB collection.
type MongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository constructs a repository over the given database
// and ensures the unique email index exists.
func NewMongoUserRepository(ctx context.Context, db *mongo.Database) (*MongoUserRepository, error) {
	coll := db.Collection(usersCollection)

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}

	return &MongoUserRepository{coll: coll}, nil
}

type mongoUser struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Name          string             `bson:"name"`
	Email         string             `bson:"email"`
	Mobile        string             `bson:"mobile,omitempty"`
	Avatar        string             `bson:"avatar,omitempty"`
	PasswordHash  string             `bson:"password"`
	EmailVerified bool               `bson:"verify_email"`
	OTP           string             `bson:"otp,omitempty"`
	OTPExpiresAt  *time.Time         `bson:"otp_expires,omitempty"`
	RefreshToken  string             `bson:"refresh_token,omitempty"`
	LastLoginAt   *time.Time         `bson:"last_login_date,omitempty"`
	Status        string             `bson:"status"`
	CreatedAt     time.Time          `bson:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at"`
}

func (m mongoUser) toUser() types.User {
	return types.User{
		ID:            m.ID.Hex(),
		Name:          m.Name,
		Email:         m.Email,
		Mobile:        m.Mobile,
		Avatar:        m.Avatar,
		PasswordHash:  m.PasswordHash,
		EmailVerified: m.EmailVerified,
		OTP:           m.OTP,
		OTPExpiresAt:  m.OTPExpiresAt,
		RefreshToken:  m.RefreshToken,
		LastLoginAt:   m.LastLoginAt,
		Status:        types.UserStatus(m.Status),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (types.User, error) {
	var doc mongoUser
	err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return doc.toUser(), nil
}

func (r *MongoUserRepository) FindByID(ctx context.Context, id string) (types.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return types.User{}, ErrNotFound
	}
	var doc mongoUser
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return doc.toUser(), nil
}

func (r *MongoUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	doc := mongoUser{
		ID:            primitive.NewObjectID(),
		Name:          user.Name,
		Email:         user.Email,
		Mobile:        user.Mobile,
		Avatar:        user.Avatar,
		PasswordHash:  user.PasswordHash,
		EmailVerified: user.EmailVerified,
		OTP:           user.OTP,
		OTPExpiresAt:  user.OTPExpiresAt,
		RefreshToken:  user.RefreshToken,
		LastLoginAt:   user.LastLoginAt,
		Status:        string(user.Status),
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.User{}, ErrDuplicateEmail
		}
		return types.User{}, err
	}

	user.ID = doc.ID.Hex()
	return user, nil
}

func (r *MongoUserRepository) UpdateByID(ctx context.Context, id string, update UserUpdate) (types.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return types.User{}, ErrNotFound
	}

	set := bson.M{"updated_at": time.Now()}
	unset := bson.M{}

	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Email != nil {
		set["email"] = *update.Email
	}
	if update.Mobile != nil {
		set["mobile"] = *update.Mobile
	}
	if update.Avatar != nil {
		set["avatar"] = *update.Avatar
	}
	if update.PasswordHash != nil {
		set["password"] = *update.PasswordHash
	}
	if update.EmailVerified != nil {
		set["verify_email"] = *update.EmailVerified
	}
	if update.RefreshToken != nil {
		set["refresh_token"] = *update.RefreshToken
	}
	if update.LastLoginAt != nil {
		set["last_login_date"] = *update.LastLoginAt
	}
	if update.Status != nil {
		set["status"] = string(*update.Status)
	}
	if update.ClearOTP {
		unset["otp"] = ""
		unset["otp_expires"] = ""
	} else {
		if update.OTP != nil {
			set["otp"] = *update.OTP
		}
		if update.OTPExpiresAt != nil {
			set["otp_expires"] = *update.OTPExpiresAt
		}
	}

	patch := bson.M{"$set": set}
	if len(unset) > 0 {
		patch["$unset"] = unset
	}

	var doc mongoUser
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, patch, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.User{}, ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return types.User{}, ErrDuplicateEmail
		}
		return types.User{}, err
	}
	return doc.toUser(), nil
}

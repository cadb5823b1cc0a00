/*
Package mongo provides a MongoDB-backed implementation of the storage interfaces.

PURPOSE:
  Implements worktime.Store and worktime.UserStore on two collections whose
  documents keep the wire shape of the attendance records: string dates,
  "HH:mm" punch times, embedded punch arrays.

COLLECTIONS:
  attendances: { _id, user, date: "YYYY-MM-DD", punches: [...], version }
  users:       { _id, fullName, email, phoneNumber, salary, role,
                 password, shiftTimings: [{start, end}] }

INDEXES (EnsureIndexes):
  - attendances (user, date) UNIQUE: one record per user per day
  - attendances (date): date reports
  - users email UNIQUE, case-insensitive collation
  - users phoneNumber UNIQUE where set

ATOMIC UPDATES:
  Optimistic concurrency on the version field. UpdateDay reads the
  document, applies the mutator, and replaces it only if the version is
  unchanged. A lost race (or a duplicate insert of a new day) returns
  worktime.ErrConcurrentModification, which the service retries.

MONTH QUERIES:
  Matches date keys with an anchored regex on the "YYYY-MM" prefix, which
  the (user, date) index serves as a range scan.

SEE ALSO:
  - worktime/store.go: Interface definitions
  - store/sqlite/sqlite.go: Relational implementation
*/
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/warp/worktime-engine/worktime"
)

const (
	AttendanceCollection = "attendances"
	UserCollection       = "users"
)

// caseInsensitive matches emails regardless of case.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

// Store implements the worktime storage interfaces on MongoDB.
type Store struct {
	client *mongo.Client
	days   *mongo.Collection
	users  *mongo.Collection
}

var (
	_ worktime.Store     = (*Store)(nil)
	_ worktime.UserStore = (*Store)(nil)
)

// Connect dials uri, pings the primary and ensures indexes on database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client: client,
		days:   db.Collection(AttendanceCollection),
		users:  db.Collection(UserCollection),
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// Ping checks the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the indexes the store relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.days.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("user_date_unique"),
		},
		{
			Keys:    bson.D{{Key: "date", Value: 1}},
			Options: options.Index().SetName("date"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create attendance indexes: %w", err)
	}

	_, err = s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetCollation(caseInsensitive).SetName("email_unique"),
		},
		{
			Keys: bson.D{{Key: "phoneNumber", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("phone_unique").
				SetPartialFilterExpression(bson.M{"phoneNumber": bson.M{"$gt": ""}}),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

// =============================================================================
// DOCUMENTS
// =============================================================================

type punchDoc struct {
	InTime            string  `bson:"inTime"`
	OutTime           *string `bson:"outTime,omitempty"`
	InPhotoURL        string  `bson:"inPhotoUrl,omitempty"`
	OutPhotoURL       string  `bson:"outPhotoUrl,omitempty"`
	DurationInMinutes *int    `bson:"durationInMinutes,omitempty"`
	LateMinutes       int     `bson:"lateMinutes"`
	LateMark          bool    `bson:"lateMark"`
	OvertimeMinutes   int     `bson:"overtimeMinutes"`
	OvertimeMark      bool    `bson:"overtimeMark"`
}

type dayDoc struct {
	ID        string     `bson:"_id"`
	UserID    string     `bson:"user"`
	Date      string     `bson:"date"`
	Punches   []punchDoc `bson:"punches"`
	Version   int        `bson:"version"`
	CreatedAt time.Time  `bson:"createdAt"`
	UpdatedAt time.Time  `bson:"updatedAt"`
}

type shiftDoc struct {
	Start string `bson:"start"`
	End   string `bson:"end"`
}

type userDoc struct {
	ID           string               `bson:"_id"`
	FullName     string               `bson:"fullName"`
	Email        string               `bson:"email"`
	PhoneNumber  string               `bson:"phoneNumber,omitempty"`
	Address      string               `bson:"address,omitempty"`
	Salary       primitive.Decimal128 `bson:"salary"`
	Role         string               `bson:"role"`
	Password     string               `bson:"password"`
	ShiftTimings []shiftDoc           `bson:"shiftTimings"`
	CreatedAt    time.Time            `bson:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt"`
}

func toDayDoc(d worktime.AttendanceDay) dayDoc {
	doc := dayDoc{
		ID:        d.ID,
		UserID:    d.UserID,
		Date:      d.Date.String(),
		Punches:   make([]punchDoc, len(d.Punches)),
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for i, p := range d.Punches {
		pd := punchDoc{
			InTime:            p.InTime.String(),
			InPhotoURL:        p.InPhotoURL,
			OutPhotoURL:       p.OutPhotoURL,
			DurationInMinutes: p.DurationInMinutes,
			LateMinutes:       p.LateMinutes,
			LateMark:          p.LateMark,
			OvertimeMinutes:   p.OvertimeMinutes,
			OvertimeMark:      p.OvertimeMark,
		}
		if p.OutTime != nil {
			out := p.OutTime.String()
			pd.OutTime = &out
		}
		doc.Punches[i] = pd
	}
	return doc
}

func (doc dayDoc) toDay() (worktime.AttendanceDay, error) {
	date, err := worktime.ParseDate(doc.Date)
	if err != nil {
		return worktime.AttendanceDay{}, fmt.Errorf("corrupt date on %s: %w", doc.ID, err)
	}
	d := worktime.AttendanceDay{
		ID:        doc.ID,
		UserID:    doc.UserID,
		Date:      date,
		Punches:   make([]worktime.Punch, len(doc.Punches)),
		Version:   doc.Version,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	for i, pd := range doc.Punches {
		in, err := worktime.ParseTimeOfDay(pd.InTime)
		if err != nil {
			return worktime.AttendanceDay{}, fmt.Errorf("corrupt punch %d on %s: %w", i, doc.ID, err)
		}
		p := worktime.Punch{
			InTime:            in,
			InPhotoURL:        pd.InPhotoURL,
			OutPhotoURL:       pd.OutPhotoURL,
			DurationInMinutes: pd.DurationInMinutes,
			LateMinutes:       pd.LateMinutes,
			LateMark:          pd.LateMark,
			OvertimeMinutes:   pd.OvertimeMinutes,
			OvertimeMark:      pd.OvertimeMark,
		}
		if pd.OutTime != nil {
			out, err := worktime.ParseTimeOfDay(*pd.OutTime)
			if err != nil {
				return worktime.AttendanceDay{}, fmt.Errorf("corrupt punch %d on %s: %w", i, doc.ID, err)
			}
			p.OutTime = &out
		}
		d.Punches[i] = p
	}
	return d, nil
}

func toUserDoc(u worktime.User) (userDoc, error) {
	salary, err := primitive.ParseDecimal128(u.Salary.String())
	if err != nil {
		return userDoc{}, fmt.Errorf("invalid salary %s: %w", u.Salary, err)
	}
	doc := userDoc{
		ID:           u.ID,
		FullName:     u.FullName,
		Email:        u.Email,
		PhoneNumber:  u.PhoneNumber,
		Address:      u.Address,
		Salary:       salary,
		Role:         string(u.Role),
		Password:     u.PasswordHash,
		ShiftTimings: make([]shiftDoc, len(u.Shifts)),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	for i, sh := range u.Shifts {
		doc.ShiftTimings[i] = shiftDoc{Start: sh.Start.String(), End: sh.End.String()}
	}
	return doc, nil
}

func (doc userDoc) toUser() (worktime.User, error) {
	u := worktime.User{
		ID:           doc.ID,
		FullName:     doc.FullName,
		Email:        doc.Email,
		PhoneNumber:  doc.PhoneNumber,
		Address:      doc.Address,
		Role:         worktime.Role(doc.Role),
		PasswordHash: doc.Password,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
	u.Salary, _ = decimal.NewFromString(doc.Salary.String())
	for _, sd := range doc.ShiftTimings {
		sh, err := worktime.ParseShift(sd.Start, sd.End)
		if err != nil {
			return worktime.User{}, fmt.Errorf("corrupt shift on user %s: %w", doc.ID, err)
		}
		u.Shifts = append(u.Shifts, sh)
	}
	return u, nil
}

// =============================================================================
// ATTENDANCE STORE (worktime.Store interface)
// =============================================================================

func (s *Store) findOne(ctx context.Context, filter bson.M) (*worktime.AttendanceDay, error) {
	var doc dayDoc
	err := s.days.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}
	d, err := doc.toDay()
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) findMany(ctx context.Context, filter bson.M, sort bson.D) ([]worktime.AttendanceDay, error) {
	cursor, err := s.days.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []dayDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode attendance: %w", err)
	}
	days := make([]worktime.AttendanceDay, 0, len(docs))
	for _, doc := range docs {
		d, err := doc.toDay()
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, nil
}

var byDate = bson.D{{Key: "date", Value: 1}}

func (s *Store) FindByUserAndDate(ctx context.Context, userID string, date worktime.Date) (*worktime.AttendanceDay, error) {
	return s.findOne(ctx, bson.M{"user": userID, "date": date.String()})
}

func (s *Store) FindByID(ctx context.Context, id string) (*worktime.AttendanceDay, error) {
	d, err := s.findOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, &worktime.RecordNotFoundError{ID: id}
	}
	return d, nil
}

func (s *Store) FindByUser(ctx context.Context, userID string) ([]worktime.AttendanceDay, error) {
	return s.findMany(ctx, bson.M{"user": userID}, byDate)
}

func (s *Store) FindByDate(ctx context.Context, date worktime.Date) ([]worktime.AttendanceDay, error) {
	return s.findMany(ctx, bson.M{"date": date.String()}, bson.D{{Key: "user", Value: 1}})
}

func (s *Store) FindByUserAndMonth(ctx context.Context, userID string, month worktime.Month) ([]worktime.AttendanceDay, error) {
	filter := bson.M{
		"user": userID,
		"date": bson.M{"$regex": "^" + regexp.QuoteMeta(month.Prefix()+"-")},
	}
	return s.findMany(ctx, filter, byDate)
}

// Save upserts by (user, date) without a version check.
func (s *Store) Save(ctx context.Context, day worktime.AttendanceDay) (worktime.AttendanceDay, error) {
	existing, err := s.FindByUserAndDate(ctx, day.UserID, day.Date)
	if err != nil {
		return worktime.AttendanceDay{}, err
	}
	if existing != nil {
		day.ID, day.Version, day.CreatedAt = existing.ID, existing.Version, existing.CreatedAt
	}
	return s.write(ctx, day, existing != nil)
}

func (s *Store) UpdateDay(ctx context.Context, userID string, date worktime.Date, fn worktime.DayMutator) (worktime.AttendanceDay, error) {
	day, err := s.FindByUserAndDate(ctx, userID, date)
	if err != nil {
		return worktime.AttendanceDay{}, err
	}
	exists := day != nil
	if !exists {
		fresh := worktime.NewAttendanceDay(userID, date)
		day = &fresh
	}
	if err := fn(day); err != nil {
		return worktime.AttendanceDay{}, err
	}
	return s.write(ctx, *day, exists)
}

func (s *Store) UpdateDayByID(ctx context.Context, id string, fn worktime.DayMutator) (worktime.AttendanceDay, error) {
	day, err := s.FindByID(ctx, id)
	if err != nil {
		return worktime.AttendanceDay{}, err
	}
	if err := fn(day); err != nil {
		return worktime.AttendanceDay{}, err
	}
	return s.write(ctx, *day, true)
}

// write inserts a new document or replaces the one at day.Version.
func (s *Store) write(ctx context.Context, day worktime.AttendanceDay, exists bool) (worktime.AttendanceDay, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)

	if !exists {
		if day.ID == "" {
			day.ID = uuid.NewString()
		}
		day.Version, day.CreatedAt, day.UpdatedAt = 1, now, now
		_, err := s.days.InsertOne(ctx, toDayDoc(day))
		if mongo.IsDuplicateKeyError(err) {
			return worktime.AttendanceDay{}, fmt.Errorf("%w: attendance for %s on %s", worktime.ErrConcurrentModification, day.UserID, day.Date)
		}
		if err != nil {
			return worktime.AttendanceDay{}, fmt.Errorf("failed to insert attendance: %w", err)
		}
		return day, nil
	}

	read := day.Version
	day.Version++
	day.UpdatedAt = now
	res, err := s.days.ReplaceOne(ctx, bson.M{"_id": day.ID, "version": read}, toDayDoc(day))
	if err != nil {
		return worktime.AttendanceDay{}, fmt.Errorf("failed to update attendance: %w", err)
	}
	if res.MatchedCount == 0 {
		return worktime.AttendanceDay{}, fmt.Errorf("%w: attendance %s", worktime.ErrConcurrentModification, day.ID)
	}
	return day, nil
}

// Reset deletes all documents. Demo scenarios only.
func (s *Store) Reset(ctx context.Context) error {
	for _, c := range []*mongo.Collection{s.days, s.users} {
		if _, err := c.DeleteMany(ctx, bson.M{}); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// USER STORE (worktime.UserStore interface)
// =============================================================================

func (s *Store) getUser(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*worktime.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, filter, opts...).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, worktime.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	u, err := doc.toUser()
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*worktime.User, error) {
	return s.getUser(ctx, bson.M{"_id": id})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*worktime.User, error) {
	return s.getUser(ctx, bson.M{"email": strings.TrimSpace(email)}, options.FindOne().SetCollation(caseInsensitive))
}

func (s *Store) ListUsers(ctx context.Context, role worktime.Role) ([]worktime.User, error) {
	filter := bson.M{}
	if role != "" {
		filter["role"] = string(role)
	}
	cursor, err := s.users.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "fullName", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	users := make([]worktime.User, 0, len(docs))
	for _, doc := range docs {
		u, err := doc.toUser()
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *Store) CreateUser(ctx context.Context, u worktime.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	u.CreatedAt, u.UpdatedAt = now, now
	doc, err := toUserDoc(u)
	if err != nil {
		return err
	}
	_, err = s.users.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return worktime.ErrDuplicateUser
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Store) UpdateUser(ctx context.Context, u worktime.User) error {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return err
	}
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	doc, err := toUserDoc(u)
	if err != nil {
		return err
	}
	res, err := s.users.ReplaceOne(ctx, bson.M{"_id": u.ID}, doc)
	if mongo.IsDuplicateKeyError(err) {
		return worktime.ErrDuplicateUser
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return worktime.ErrUserNotFound
	}
	return nil
}

func (s *Store) DeleteUserByEmail(ctx context.Context, email string) error {
	_, err := s.users.DeleteMany(ctx, bson.M{"email": email}, options.Delete().SetCollation(caseInsensitive))
	return err
}

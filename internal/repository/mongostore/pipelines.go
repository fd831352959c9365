// Package mongostore implements the visitor and activity repositories on MongoDB,
// using aggregation pipelines for every report query.
package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/axellelanca/sitepulse/internal/models"
	"github.com/axellelanca/sitepulse/internal/repository"
)

// literal keeps client-supplied strings from being read as field paths or operators
// inside pipeline updates.
func literal(v string) bson.M {
	return bson.M{"$literal": v}
}

// visitUpdatePipeline builds the two-stage update applied by UpsertVisit. The first stage
// increments the counter and fills write-once timestamps; the second derives bounced and
// sessionDuration from the values produced by the first.
func visitUpdatePipeline(u models.VisitUpdate) mongo.Pipeline {
	at := u.At.UTC()

	set := bson.D{
		{Key: "pageViews", Value: bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$pageViews", 0}}, u.PageViewIncrement()}}},
		{Key: "firstSeen", Value: bson.M{"$ifNull": bson.A{"$firstSeen", at}}},
		{Key: "sessionStart", Value: bson.M{"$ifNull": bson.A{"$sessionStart", at}}},
		{Key: "lastSeen", Value: at},
		{Key: "isOnline", Value: true},
		{Key: "ip", Value: literal(u.IP)},
		{Key: "userAgent", Value: literal(u.UserAgent)},
		{Key: "country", Value: literal(u.Country)},
		{Key: "countryName", Value: literal(u.CountryName)},
		{Key: "city", Value: literal(u.City)},
		{Key: "deviceType", Value: literal(u.DeviceType)},
		{Key: "browser", Value: literal(u.Browser)},
		{Key: "currentPage", Value: literal(u.CurrentPage)},
	}
	if u.Referrer != "" {
		set = append(set,
			bson.E{Key: "referrer", Value: literal(u.Referrer)},
			bson.E{Key: "referrerSource", Value: literal(u.ReferrerSource)},
		)
	}

	derived := bson.D{
		{Key: "bounced", Value: bson.M{"$lte": bson.A{"$pageViews", 1}}},
		{Key: "sessionDuration", Value: bson.M{"$toInt": bson.M{
			"$divide": bson.A{bson.M{"$subtract": bson.A{"$lastSeen", "$sessionStart"}}, 1000},
		}}},
	}

	return mongo.Pipeline{
		{{Key: "$set", Value: set}},
		{{Key: "$set", Value: derived}},
	}
}

// labelExpr maps missing or empty values of field to fallback.
func labelExpr(field, fallback string) bson.M {
	return bson.M{"$cond": bson.A{
		bson.M{"$eq": bson.A{bson.M{"$ifNull": bson.A{"$" + field, ""}}, ""}},
		fallback,
		"$" + field,
	}}
}

func breakdownPipeline(b repository.Breakdown, start time.Time) mongo.Pipeline {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"firstSeen": bson.M{"$gte": start.UTC()}}}},
		{{Key: "$group", Value: bson.M{"_id": labelExpr(b.Field, b.Fallback), "count": bson.M{"$sum": 1}}}},
	}
	if len(b.Exclude) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"_id": bson.M{"$nin": b.Exclude}}}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}})
	if b.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: b.Limit}})
	}
	return pipeline
}

// sessionStatsPipeline counts any bounced value other than false, missing included, as a bounce.
func sessionStatsPipeline(start time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"firstSeen": bson.M{"$gte": start.UTC()}}}},
		{{Key: "$group", Value: bson.M{
			"_id":             nil,
			"totalSessions":   bson.M{"$sum": 1},
			"bouncedSessions": bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$bounced", false}}, 0, 1}}},
			"avgDuration":     bson.M{"$avg": "$sessionDuration"},
		}}},
		{{Key: "$project", Value: bson.M{
			"_id":             0,
			"totalSessions":   1,
			"bouncedSessions": 1,
			"avgDuration":     bson.M{"$ifNull": bson.A{"$avgDuration", 0}},
		}}},
	}
}

func windowTotalsPipeline(start, end time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"firstSeen": bson.M{"$gte": start.UTC(), "$lt": end.UTC()}}}},
		{{Key: "$group", Value: bson.M{
			"_id":       nil,
			"visitors":  bson.M{"$sum": 1},
			"pageViews": bson.M{"$sum": "$pageViews"},
		}}},
	}
}

func topSearchTermsPipeline(start time.Time, limit int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"type":           models.ActivityTypeSearch,
			"createdAt":      bson.M{"$gte": start.UTC()},
			"metadata.query": bson.M{"$nin": bson.A{nil, ""}},
		}}},
		{{Key: "$group", Value: bson.M{"_id": "$metadata.query", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
	}
}

func countByTypePipeline(start time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"createdAt": bson.M{"$gte": start.UTC()}}}},
		{{Key: "$group", Value: bson.M{"_id": "$type", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
}

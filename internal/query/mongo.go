package query

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ToMongo translates a Query into a filter document and find options.
// Every constraint becomes its own clause so repeated fields (the prefix
// range pair) survive; the clauses are joined under $and.
func ToMongo(q Query) (bson.M, *options.FindOptions) {
	clauses := make([]bson.M, 0, len(q.Constraints)+1)

	for _, c := range q.Constraints {
		switch c.Op {
		case OpEq:
			clauses = append(clauses, bson.M{c.Field: c.Value})
		case OpGte:
			clauses = append(clauses, bson.M{c.Field: bson.M{"$gte": c.Value}})
		case OpLte:
			clauses = append(clauses, bson.M{c.Field: bson.M{"$lte": c.Value}})
		case OpIn:
			clauses = append(clauses, bson.M{c.Field: bson.M{"$in": c.Value}})
		}
	}

	if q.Cursor != nil && len(q.Orders) > 0 {
		clauses = append(clauses, cursorClause(q.Orders[0], *q.Cursor))
	}

	filter := bson.M{}
	switch len(clauses) {
	case 0:
	case 1:
		filter = clauses[0]
	default:
		filter = bson.M{"$and": clauses}
	}

	sort := bson.D{}
	for _, o := range q.Orders {
		dir := 1
		if o.Desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: o.Field, Value: dir})
	}
	// _id tiebreak keeps pagination stable across equal sort keys.
	sort = append(sort, bson.E{Key: "_id", Value: 1})

	opts := options.Find().SetSort(sort)
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return filter, opts
}

// cursorClause resumes after the previous page's last item: strictly past
// its primary sort value, or equal with a greater id.
func cursorClause(primary Order, cur Cursor) bson.M {
	rangeOp := "$gt"
	if primary.Desc {
		rangeOp = "$lt"
	}
	return bson.M{"$or": []bson.M{
		{primary.Field: bson.M{rangeOp: cur.SortValue}},
		{primary.Field: cur.SortValue, "_id": bson.M{"$gt": cur.ID}},
	}}
}

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
)

func TestFilterClause(t *testing.T) {
	var args []any
	assert.Equal(t, "TRUE", filterClause(model.Filter{}, &args))
	assert.Empty(t, args)

	args = []any{int64(7)}
	got := filterClause(model.Filter{
		BoundingBox:     &model.BoundingBox{MinLongitude: -3, MinLatitude: 50, MaxLongitude: -2, MaxLatitude: 52},
		OperatorRefs:    []string{"FBRI"},
		SubscriptionIDs: []string{"s1", "s2"},
		VehicleRef:      "V1",
	}, &args)

	assert.Equal(t, "longitude BETWEEN $2 AND $3 AND latitude BETWEEN $4 AND $5"+
		" AND operator_ref = ANY($6) AND subscription_id = ANY($7) AND vehicle_ref = $8", got)
	assert.Equal(t, []any{int64(7), -3.0, -2.0, 50.0, 52.0, []string{"FBRI"}, []string{"s1", "s2"}, "V1"}, args)
}

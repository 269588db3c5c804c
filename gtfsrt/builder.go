package gtfsrt

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
	"github.com/theoremus-urban-solutions/siri-vm-hub/utils"
)

// Version is the gtfs_realtime_version written in every header.
const Version = "2.0"

// BuildFeed converts records into a FeedMessage stamped with now.
func BuildFeed(records []model.VehicleActivityRecord, now time.Time) *gtfsrtpb.FeedMessage {
	entities := make([]*gtfsrtpb.FeedEntity, 0, len(records))
	for _, r := range records {
		entities = append(entities, buildEntity(r))
	}
	return &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String(Version),
			Incrementality:      gtfsrtpb.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
		Entity: entities,
	}
}

// Marshal renders records as protobuf bytes.
func Marshal(records []model.VehicleActivityRecord, now time.Time) ([]byte, error) {
	data, err := proto.Marshal(BuildFeed(records, now))
	if err != nil {
		return nil, fmt.Errorf("marshal gtfs-rt feed: %w", err)
	}
	return data, nil
}

// Decode parses protobuf bytes back into a FeedMessage.
func Decode(data []byte) (*gtfsrtpb.FeedMessage, error) {
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(data, &fm); err != nil {
		return nil, err
	}
	return &fm, nil
}

func buildEntity(r model.VehicleActivityRecord) *gtfsrtpb.FeedEntity {
	vp := &gtfsrtpb.VehiclePosition{
		Vehicle: &gtfsrtpb.VehicleDescriptor{Id: proto.String(r.VehicleRef)},
		Position: &gtfsrtpb.Position{
			Latitude:  proto.Float32(float32(r.Latitude)),
			Longitude: proto.Float32(float32(r.Longitude)),
			Bearing:   proto.Float32(parseBearing(r.Bearing)),
		},
		Timestamp:       proto.Uint64(uint64(r.RecordedAtTime.Unix())),
		OccupancyStatus: MapOccupancy(r.Occupancy).Enum(),
	}
	if r.Matched() {
		td := &gtfsrtpb.TripDescriptor{
			TripId:               proto.String(*r.TripID),
			RouteId:              proto.String(*r.RouteID),
			ScheduleRelationship: gtfsrtpb.TripDescriptor_SCHEDULED.Enum(),
		}
		if r.OriginAimedDepartureTime != nil {
			td.StartDate = proto.String(utils.GTFSStartDate(*r.OriginAimedDepartureTime))
			td.StartTime = proto.String(utils.GTFSStartTime(*r.OriginAimedDepartureTime))
		}
		vp.Trip = td
	}
	return &gtfsrtpb.FeedEntity{
		Id:      proto.String(strconv.FormatInt(r.ID, 10)),
		Vehicle: vp,
	}
}

// parseBearing returns 0 when the bearing is absent or not a number.
func parseBearing(s string) float32 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
	if err != nil {
		return 0
	}
	return float32(f)
}

// MapOccupancy maps SIRI Occupancy values to GTFS-RT occupancy status.
// Unknown or missing values map to MANY_SEATS_AVAILABLE.
func MapOccupancy(occupancy string) gtfsrtpb.VehiclePosition_OccupancyStatus {
	switch strings.TrimSpace(occupancy) {
	case "empty":
		return gtfsrtpb.VehiclePosition_EMPTY
	case "manySeatsAvailable", "seatsAvailable":
		return gtfsrtpb.VehiclePosition_MANY_SEATS_AVAILABLE
	case "fewSeatsAvailable":
		return gtfsrtpb.VehiclePosition_FEW_SEATS_AVAILABLE
	case "standingAvailable":
		return gtfsrtpb.VehiclePosition_STANDING_ROOM_ONLY
	case "full":
		return gtfsrtpb.VehiclePosition_FULL
	case "notAcceptingPassengers":
		return gtfsrtpb.VehiclePosition_NOT_ACCEPTING_PASSENGERS
	default:
		return gtfsrtpb.VehiclePosition_MANY_SEATS_AVAILABLE
	}
}

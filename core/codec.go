package core

import (
	"encoding/json"
	"fmt"
)

// MarshalActivity encodes an activity as a flat JSON object carrying a
// "kind" discriminant alongside the variant's own fields. Every field
// of every variant round-trips losslessly through UnmarshalActivity.
func MarshalActivity(a Activity) ([]byte, error) {
	switch v := a.(type) {
	case AchievementEarned:
		return json.Marshal(struct {
			Kind ActivityKind `json:"kind"`
			AchievementEarned
		}{v.Kind(), v})
	case PlantAdded:
		return json.Marshal(struct {
			Kind ActivityKind `json:"kind"`
			PlantAdded
		}{v.Kind(), v})
	case FriendAdded:
		return json.Marshal(struct {
			Kind ActivityKind `json:"kind"`
			FriendAdded
		}{v.Kind(), v})
	default:
		return nil, fmt.Errorf("unsupported activity type %T", a)
	}
}

// UnmarshalActivity decodes the flat JSON produced by MarshalActivity
// back into the concrete variant. Unknown kinds are rejected rather
// than silently mapped to a partial value.
func UnmarshalActivity(data []byte) (Activity, error) {
	var head struct {
		Kind ActivityKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode activity envelope: %w", err)
	}
	switch head.Kind {
	case KindAchievementEarned:
		var v AchievementEarned
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindPlantAdded:
		var v PlantAdded
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindFriendAdded:
		var v FriendAdded
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown activity kind %q", head.Kind)
	}
}

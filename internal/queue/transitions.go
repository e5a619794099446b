package queue

import "github.com/DebonairSM/eu-to-na-fila-sub002/internal/models"

// Action names a staff- or customer-driven lifecycle move. The table below
// is the single place that defines which states each action may leave.
type Action string

const (
	ActionCheckIn        Action = "check_in"
	ActionAssignBarber   Action = "assign_barber"
	ActionUnassignBarber Action = "unassign_barber"
	ActionComplete       Action = "complete"
	ActionCancel         Action = "cancel"
)

var transitionMap = map[Action][]models.Status{
	ActionCheckIn:        {models.StatusPending},
	ActionAssignBarber:   {models.StatusWaiting},
	ActionUnassignBarber: {models.StatusInProgress},
	ActionComplete:       {models.StatusInProgress},
	ActionCancel:         {models.StatusPending, models.StatusWaiting, models.StatusInProgress},
}

// target gives the state each action lands in.
var targetMap = map[Action]models.Status{
	ActionCheckIn:        models.StatusWaiting,
	ActionAssignBarber:   models.StatusInProgress,
	ActionUnassignBarber: models.StatusWaiting,
	ActionComplete:       models.StatusCompleted,
	ActionCancel:         models.StatusCancelled,
}

func ValidTransition(action Action, from models.Status) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}

func transitionTarget(action Action) models.Status {
	return targetMap[action]
}

package core

import (
	"github.com/rs/zerolog"

	"github.com/edvin/fleet/internal/device"
	"github.com/edvin/fleet/internal/notify"
)

type Services struct {
	TargetGroup *TargetGroupService
	Resource    *ResourceService
	CleanupTask *CleanupTaskService
	ConfigEntry *ConfigEntryService
}

func NewServices(db TxDB, devices device.Controller, notifier notify.Notifier, logger zerolog.Logger) *Services {
	resources := NewResourceService(db, notifier)
	return &Services{
		TargetGroup: NewTargetGroupService(db, devices, resources),
		Resource:    resources,
		CleanupTask: NewCleanupTaskService(db, logger),
		ConfigEntry: NewConfigEntryService(db),
	}
}

package status

import "github.com/BearBump/ShipRelay/internal/models"

// Mapping from the raw AfterShip (tag, subtag) vocabulary into the two
// canonical taxonomies. One constant table so the mapper, the suppression
// list and the poll exclusion filter can never drift apart.

// Coarse maps a raw tag to the coarse taxonomy used by the legacy
// response channel. An empty tag means no status was determined and maps
// to "", which is not a publishable value.
func Coarse(tag string) string {
	if tag == "" {
		return ""
	}
	switch tag {
	case models.TagInTransit:
		return models.CoarseStatusInTransit
	case models.TagDelivered:
		return models.CoarseStatusDelivered
	case models.TagException:
		return models.CoarseStatusError
	case models.TagPending:
		return models.CoarseStatusPendingTracking
	default:
		return models.CoarseStatusUnrecognized
	}
}

// fineExceptions refines Exception sub-tags. Anything else under
// Exception is a generic delivery failure, not UNRECOGNIZE.
var fineExceptions = map[string]string{
	models.SubTagException011: models.FineStatusReturned,
	models.SubTagException004: models.FineStatusPkgDelayed,
	models.SubTagException005: models.FineStatusPkgDelayed,
	models.SubTagException013: models.FineStatusPkgLost,
	models.SubTagException007: models.FineStatusIncorrectAddress,
}

// Fine maps a raw (tag, subTag) pair to the fine-grained taxonomy used by
// the fulfillment response channel. For refinable tags an unmatched
// sub-tag maps to UNRECOGNIZE, not to the coarse parent.
func Fine(tag, subTag string) string {
	if tag == "" {
		return ""
	}
	switch tag {
	case models.TagInTransit:
		return models.FineStatusInTransit
	case models.TagDelivered:
		return models.FineStatusDelivered
	case models.TagPending:
		return models.FineStatusPending
	case models.TagAvailableForPickup:
		if subTag == models.SubTagAvailableForPickup001 {
			return models.FineStatusAvailableToPickup
		}
		return models.FineStatusUnrecognized
	case models.TagOutForDelivery:
		if subTag == models.SubTagOutForDelivery004 {
			return models.FineStatusDeliveryAppointmentSetup
		}
		return models.FineStatusUnrecognized
	case models.TagException:
		if s, ok := fineExceptions[subTag]; ok {
			return s
		}
		return models.FineStatusDeliveryFailed
	default:
		return models.FineStatusUnrecognized
	}
}

// CoarsePublishable reports whether a coarse status is forwarded
// downstream. Everything else is treated as transient.
func CoarsePublishable(coarse string) bool {
	switch coarse {
	case models.CoarseStatusInTransit, models.CoarseStatusDelivered, models.CoarseStatusError:
		return true
	}
	return false
}

// SuppressionList is the curated set of exception sub-codes too noisy to
// forward downstream. Lookup is O(1); membership never blocks the
// bookkeeping update.
type SuppressionList map[string]struct{}

func NewSuppressionList(subTags []string) SuppressionList {
	l := make(SuppressionList, len(subTags))
	for _, s := range subTags {
		if s != "" {
			l[s] = struct{}{}
		}
	}
	return l
}

func (l SuppressionList) Contains(subTag string) bool {
	if subTag == "" {
		return false
	}
	_, ok := l[subTag]
	return ok
}

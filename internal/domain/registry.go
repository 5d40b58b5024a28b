// Package domain lists the resources the console manages.
package domain

import (
	"sort"

	"github.com/emr/console/internal/domain/certificate"
	"github.com/emr/console/internal/domain/entity"
	"github.com/emr/console/internal/domain/glasses"
	"github.com/emr/console/internal/domain/labtest"
	"github.com/emr/console/internal/domain/medicine"
	"github.com/emr/console/internal/domain/patient"
	"github.com/emr/console/internal/domain/payment"
	"github.com/emr/console/internal/domain/physio"
	"github.com/emr/console/internal/domain/referral"
)

// Resources returns every managed resource in menu order.
func Resources() []entity.Resource {
	return []entity.Resource{
		patient.Resource,
		labtest.Resource,
		referral.Resource,
		payment.Resource,
		certificate.Resource,
		physio.Resource,
		glasses.Resource,
		medicine.Resource,
	}
}

// Lookup finds a resource by slug.
func Lookup(slug string) (entity.Resource, bool) {
	for _, r := range Resources() {
		if r.Describe().Slug == slug {
			return r, true
		}
	}
	return nil, false
}

// Slugs returns the sorted slugs of all resources.
func Slugs() []string {
	rs := Resources()
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Describe().Slug)
	}
	sort.Strings(out)
	return out
}

package members

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/uclf/legal-aid-portal/pkg/models"
)

// SeedMembers is the initial registry. Members known only to the admin
// registry have not opted into the public directory.
func SeedMembers() []models.Member {
	hidden := models.Visibility{}
	return []models.Member{
		{
			Name: "Counsel Martin Sabiiti", Tier: models.RoleFullMember,
			Specialization: "Criminal Defense, JLOS Policy", Location: "Kampala",
			Email: "martin.s@uclf.org.ug", Phone: "+256 772 123 456", Church: "Watoto Church",
			Status: models.MemberActive, Joined: "Jan 2012",
			Visibility: models.FullVisibility(),
		},
		{
			Name: "Anne Muhairwe", Tier: models.RoleFullMember,
			Specialization: "Public Administration Law", Location: "Kampala",
			Email: "anne.m@uclf.org.ug", Phone: "+256 701 999 888", Church: "All Saints Cathedral",
			Status:     models.MemberActive,
			Visibility: models.Visibility{PublicProfile: true, Email: true, Specialization: true, Location: true},
		},
		{
			Name: "David Komakech", Tier: models.RoleFullMember,
			Specialization: "Land Mediation", Location: "Gulu",
			Email: "david.k@uclf.org.ug", Phone: "+256 752 444 333", Church: "Gulu Community Church",
			Status: models.MemberActive, Joined: "Nov 2015",
			Visibility: models.FullVisibility(),
		},
		{
			Name: "Grace Aber", Tier: models.RoleAssociate,
			Specialization: "Social Justice, Gender Law", Location: "Gulu",
			Email: "grace.a@uclf.org.ug", Phone: "+256 781 000 111", Church: "St. Peters Cathedral",
			Status:     models.MemberActive,
			Visibility: models.Visibility{PublicProfile: true, Email: true, Phone: true, Location: true},
		},
		{
			Name: "Sarah Nakimera", Tier: models.RoleStudent,
			Specialization: "LLB Year 3 Student", Location: "Mukono",
			Email: "sarah.n@ucu.ac.ug", Phone: "+256 700 123 789", Church: "UCU Chapel",
			Status: models.MemberActive, Joined: "Feb 2023",
			Visibility: models.Visibility{PublicProfile: true, Specialization: true, Location: true},
		},
		{
			Name: "Private Member Example", Tier: models.RoleFullMember,
			Specialization: "Confidential Practice", Location: "Kampala",
			Email: "private@uclf.org.ug", Phone: "+256 000 000 000", Church: "Private Chapel",
			Status:     models.MemberActive,
			Visibility: hidden,
		},
		{
			Name: "Jane Nakato", Tier: models.RoleAssociate, Location: "Kampala",
			Email: "j.nakato@uclf.org.ug", Status: models.MemberActive, Joined: "Mar 2018",
			Visibility: hidden,
		},
		{
			Name: "Grace Aber", Tier: models.RoleAssociate, Location: "Arua",
			Email: "g.aber@uclf.org.ug", Status: models.MemberPending, Joined: "Mar 2024",
			Visibility: hidden,
		},
		{
			Name: "Robert Anguyo", Tier: models.RoleFullMember, Location: "Arua",
			Email: "r.anguyo@uclf.org.ug", Status: models.MemberActive, Joined: "Jun 2019",
			Visibility: hidden,
		},
		{
			Name: "John Baptist", Tier: models.RoleStudent, Location: "Lira",
			Email: "j.baptist@uclf.org.ug", Status: models.MemberInactive, Joined: "Aug 2022",
			Visibility: hidden,
		},
	}
}

// Seed inserts the initial registry, skipping emails already present.
func Seed(ctx context.Context, db *gorm.DB) (int64, error) {
	rows := SeedMembers()
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&rows)
	return res.RowsAffected, res.Error
}

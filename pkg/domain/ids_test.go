package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "annuaire/pkg/domain"
)

type IDSuite struct {
	suite.Suite
}

func TestIDSuite(t *testing.T) {
	suite.Run(t, new(IDSuite))
}

func (s *IDSuite) TestIsZero() {
	s.True(id.OrgID{}.IsZero())
	s.True(id.UserID{}.IsZero())
	s.True(id.CertificateID{}.IsZero())
	s.True(id.CertificateVersionID{}.IsZero())
	s.True(id.DocumentID{}.IsZero())
	s.True(id.DocumentVersionID{}.IsZero())
	s.True(id.MethodID{}.IsZero())
	s.True(id.FileID{}.IsZero())

	u := uuid.New()
	s.False(id.CertificateVersionID(u).IsZero())
	s.False(id.DocumentVersionID(u).IsZero())
	s.False(id.FileID(u).IsZero())
}

func (s *IDSuite) TestParseRejectsBadInput() {
	for _, input := range []string{"", "not-a-uuid", uuid.Nil.String()} {
		_, err := id.ParseOrgID(input)
		s.Error(err, input)
	}
}

func (s *IDSuite) TestParseRoundTrip() {
	u := uuid.New()
	parsed, err := id.ParseDocumentID(u.String())
	s.Require().NoError(err)
	s.Equal(u.String(), parsed.String())
}

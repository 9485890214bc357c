package archive

import (
	"context"
	"fmt"

	"heirloom/internal/succession/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/requestcontext"
)

// Local stands in for the export service when none is configured. It returns
// a handle naming the branch and the request time.
type Local struct {
	publicBaseURL string
}

func NewLocal(publicBaseURL string) *Local {
	return &Local{publicBaseURL: publicBaseURL}
}

func (l *Local) Generate(ctx context.Context, branchID id.BranchID) (*models.Archive, error) {
	handle := fmt.Sprintf("local-%s-%d", branchID, requestcontext.Now(ctx).Unix())
	return &models.Archive{Handle: handle, DownloadURL: l.publicBaseURL + "/archives/" + handle}, nil
}

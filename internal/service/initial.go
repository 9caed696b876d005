package service

import (
	"context"

	"github.com/tadasupo/backend/internal/models"
	"github.com/tadasupo/backend/internal/settings"
)

var (
	businessTypes = []string{"訪問介護", "通所介護", "居宅介護支援", "福祉用具貸与", "小規模多機能", "有料老人ホーム", "その他"}
	prefectures   = []string{"東京都", "神奈川県", "大阪府", "愛知県", "福岡県", "北海道", "その他"}
)

const (
	defaultInitialSubject  = "タダサポ｜ご相談を承りました"
	defaultInitialBody     = "{{名前}} 様\n\nこの度はタダサポへご相談いただきありがとうございます。\n担当させていただきます{{担当者名}}と申します。\n\nご相談内容を確認いたしました。\n追ってサポート日時のご連絡をさせていただきます。\n\n何かご不明な点がございましたら、お気軽にお問い合わせください。\n\n今後ともよろしくお願いいたします。"
	defaultDeclinedSubject = "タダサポ｜ご利用回数上限のお知らせ"
	defaultDeclinedBody    = "{{名前}} 様\n\nいつもタダサポをご利用いただきありがとうございます。\n\n誠に恐れ入りますが、{{事業所名}} 様の今年度のご利用回数が上限に達しております。\nそのため、今回のご相談につきましては対応を見送らせていただくこととなりました。\n\n大変申し訳ございませんが、何卒ご理解くださいますようお願い申し上げます。\n次年度のご利用をお待ちしております。"
)

type StaffRef struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type EmailTemplates struct {
	InitialSubject  string `json:"initial_subject"`
	InitialBody     string `json:"initial_body"`
	DeclinedSubject string `json:"declined_subject"`
	DeclinedBody    string `json:"declined_body"`
}

type Masters struct {
	Methods          []string       `json:"methods"`
	BusinessTypes    []string       `json:"business_types"`
	Prefectures      []string       `json:"prefectures"`
	AllStaff         []StaffRef     `json:"all_staff"`
	EmailTemplates   EmailTemplates `json:"email_templates"`
	CaseUsageLimit   int            `json:"case_usage_limit"`
	AnnualUsageLimit int            `json:"annual_usage_limit"`
}

type InitialData struct {
	User    models.Actor      `json:"user"`
	Cases   []models.CaseView `json:"cases"`
	Masters Masters           `json:"masters"`
}

func (s *CaseService) InitialData(ctx context.Context, actor models.Actor) (InitialData, error) {
	cases, err := s.ListCases(ctx)
	if err != nil {
		return InitialData{}, err
	}
	masters, err := s.Masters(ctx)
	if err != nil {
		return InitialData{}, err
	}
	return InitialData{User: actor, Cases: cases, Masters: masters}, nil
}

func (s *CaseService) Masters(ctx context.Context) (Masters, error) {
	methods := []string{models.MethodGoogleMeet}
	if s.ZoomEnabled != nil && s.ZoomEnabled() {
		methods = append(methods, models.MethodZoom)
	}
	methods = append(methods, models.MethodPhone, models.MethodInPerson)

	staff, err := s.Repo.ListStaff(ctx)
	if err != nil {
		return Masters{}, storeErr(err, "failed to read staff")
	}
	refs := make([]StaffRef, 0, len(staff))
	for _, st := range staff {
		if st.IsActive {
			refs = append(refs, StaffRef{Name: st.Name, Email: st.Email})
		}
	}

	st := s.Settings
	return Masters{
		Methods:       methods,
		BusinessTypes: businessTypes,
		Prefectures:   prefectures,
		AllStaff:      refs,
		EmailTemplates: EmailTemplates{
			InitialSubject:  st.Get(settings.KeyMailInitialSubject, defaultInitialSubject),
			InitialBody:     st.Get(settings.KeyMailInitialBody, defaultInitialBody),
			DeclinedSubject: st.Get(settings.KeyMailDeclinedSubject, defaultDeclinedSubject),
			DeclinedBody:    st.Get(settings.KeyMailDeclinedBody, defaultDeclinedBody),
		},
		CaseUsageLimit:   st.CaseUsageLimit(),
		AnnualUsageLimit: st.AnnualUsageLimit(),
	}, nil
}

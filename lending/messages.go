package lending

// Caller-facing messages. The wording is part of the API contract the dashboard relies on.
const (
	MsgBookNotFound     = "Kitap bulunamadı"
	MsgCategoryNotFound = "Kategori bulunamadı"
	MsgLoanNotFound     = "Ödünç kaydı bulunamadı"

	MsgBookUnavailable = "Kitap şu anda ödünç verilemez"
	MsgAlreadyReturned = "Bu kitap zaten iade edilmiş"

	MsgCategoryExists = "Bu isimde bir kategori zaten var"
	MsgISBNExists     = "Bu ISBN ile kayıtlı bir kitap zaten var"
	MsgCategoryInUse  = "Kategoriye bağlı kitaplar var"
	MsgBookOnLoan     = "Kitap şu anda ödünçte, silinemez"
	MsgBookHasHistory = "Kitabın ödünç geçmişi var, silinemez"

	MsgBookDeleted     = "Kitap başarıyla silindi"
	MsgBookReturned    = "Kitap başarıyla iade edildi"
	MsgCategoryDeleted = "Kategori başarıyla silindi"
)
